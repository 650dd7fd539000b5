// Package cache keeps acquired documents in Redis so repeated runs can skip
// the browser and the network
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"suapemap/scraper"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Store wraps a Redis client
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore connects lazily to the Redis server at addr
func NewStore(addr string) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "suapemap:",
	}
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.client.Close()
}

// Memoize returns the cached value for key or calls fn and stores its result.
// Errors from fn are returned and never cached; Redis errors fall through to fn
func Memoize[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	return MemoizeIf(ctx, s, key, ttl, fn, nil)
}

// MemoizeIf is Memoize that only stores results accepted by keep. A nil keep
// accepts everything
func MemoizeIf[T any](ctx context.Context, s *Store, key string, ttl time.Duration, fn func() (T, error), keep func(T) bool) (T, error) {
	var result T
	key = s.prefix + key

	cachedData, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(cachedData, &result); jsonErr == nil {
			log.Debug().Str("key", key).Msg("cache hit")
			return result, nil
		}
	} else if err != redis.Nil {
		log.Debug().Err(err).Str("key", key).Msg("cache unavailable")
	}

	result, err = fn()
	if err != nil {
		return result, err
	}
	if keep != nil && !keep(result) {
		log.Debug().Str("key", key).Msg("result not cached")
		return result, nil
	}

	cacheData, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := s.client.Set(ctx, key, cacheData, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
	return result, nil
}

// source decorates a live source with the document cache. A hit is served
// without calling next, so the wrapped source's capability check is skipped
type source struct {
	store  *Store
	ttl    time.Duration
	key    string
	marker string
	next   scraper.Source
}

// Wrap caches documents of next under key for ttl. Only documents holding at
// least one element matching the marker selector are stored, so error pages
// and empty renders are fetched again on the next run
func Wrap(store *Store, ttl time.Duration, key, marker string, next scraper.Source) scraper.Source {
	return &source{store: store, ttl: ttl, key: key, marker: marker, next: next}
}

func (s *source) Name() string { return s.next.Name() }

func (s *source) Acquire(ctx context.Context) (string, error) {
	return MemoizeIf(ctx, s.store, "document:"+s.next.Name()+":"+s.key, s.ttl, func() (string, error) {
		return s.next.Acquire(ctx)
	}, s.hasMarker)
}

func (s *source) hasMarker(doc string) bool {
	if strings.TrimSpace(doc) == "" {
		return false
	}
	if s.marker == "" {
		return true
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return false
	}
	return d.Find(s.marker).Length() > 0
}
