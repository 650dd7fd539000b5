package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"suapemap/scraper"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marker = "div.empresa"

const rendered = `<html><body><div class="empresa"><h3>Empresa X</h3></div></body></html>`

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewStore(mr.Addr())
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestMemoize(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	calls := 0
	fn := func() (string, error) {
		calls++
		return "<html>doc</html>", nil
	}

	got, err := Memoize(ctx, s, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "<html>doc</html>", got)

	got, err = Memoize(ctx, s, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "<html>doc</html>", got)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	_, err = Memoize(ctx, s, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWrapDoesNotCacheErrors(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	calls := 0
	next := scraper.SourceFunc{ID: "network", Fn: func(context.Context) (string, error) {
		calls++
		return "", errors.New("timeout")
	}}
	src := Wrap(s, time.Hour, "https://example.com", marker, next)
	assert.Equal(t, "network", src.Name())

	_, err := src.Acquire(ctx)
	assert.Error(t, err)
	_, err = src.Acquire(ctx)
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Empty(t, mr.Keys())
}

func TestWrapKeepsUnavailable(t *testing.T) {
	s, _ := newStore(t)
	next := scraper.SourceFunc{ID: "browser", Fn: func(context.Context) (string, error) {
		return "", scraper.Unavailable("no executable")
	}}

	_, err := Wrap(s, time.Hour, "u", marker, next).Acquire(context.Background())
	assert.ErrorIs(t, err, scraper.ErrUnavailable)
}

func TestWrapServesFromCache(t *testing.T) {
	s, mr := newStore(t)
	calls := 0
	next := scraper.SourceFunc{ID: "browser", Fn: func(context.Context) (string, error) {
		calls++
		return rendered, nil
	}}
	src := Wrap(s, time.Hour, "u", marker, next)

	for i := 0; i < 3; i++ {
		got, err := src.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, rendered, got)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"suapemap:document:browser:u"}, mr.Keys())
}

func TestWrapSkipsDocumentsWithoutBlocks(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"error page", "<html><body><h1>503 Service Unavailable</h1></body></html>"},
		{"blocks not rendered yet", `<html><body><div id="mapa"></div></body></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mr := newStore(t)
			calls := 0
			next := scraper.SourceFunc{ID: "network", Fn: func(context.Context) (string, error) {
				calls++
				return tt.doc, nil
			}}
			src := Wrap(s, time.Hour, "u", marker, next)

			for i := 0; i < 2; i++ {
				got, err := src.Acquire(context.Background())
				require.NoError(t, err)
				assert.Equal(t, tt.doc, got)
			}
			assert.Equal(t, 2, calls)
			assert.Empty(t, mr.Keys())
		})
	}
}

func TestMemoizeIfKeep(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	keep := func(v int) bool { return v > 0 }

	got, err := MemoizeIf(ctx, s, "zero", time.Minute, func() (int, error) { return 0, nil }, keep)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
	assert.False(t, mr.Exists("suapemap:zero"))

	_, err = MemoizeIf(ctx, s, "one", time.Minute, func() (int, error) { return 1, nil }, keep)
	require.NoError(t, err)
	assert.True(t, mr.Exists("suapemap:one"))
}

func TestRedisDownFallsThrough(t *testing.T) {
	s, mr := newStore(t)
	mr.Close()

	got, err := Memoize(context.Background(), s, "k", time.Minute, func() (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}
