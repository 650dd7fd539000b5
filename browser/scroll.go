package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotSettled is returned when the page keeps growing past MaxScrolls
var ErrNotSettled = errors.New("page height did not settle")

// Page is the part of a browser tab the scroll loop needs
type Page interface {
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)
}

// Settler scrolls a page until lazy loading stops adding content
type Settler struct {
	MinDelay   time.Duration
	MaxDelay   time.Duration
	MaxScrolls int

	// Sleep waits between a scroll and the next height reading. Nil means a
	// context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultSettler waits 1-2s between scrolls and gives up after 50 of them
func DefaultSettler() Settler {
	return Settler{
		MinDelay:   time.Second,
		MaxDelay:   2 * time.Second,
		MaxScrolls: 50,
	}
}

// Settle scrolls to the bottom until two consecutive height readings match and
// returns the final height
func (s Settler) Settle(ctx context.Context, p Page) (int64, error) {
	maxScrolls := s.MaxScrolls
	if maxScrolls <= 0 {
		maxScrolls = 50
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last int64
	for i := 0; i < maxScrolls; i++ {
		if err := p.ScrollToBottom(ctx); err != nil {
			return last, fmt.Errorf("scrolling: %w", err)
		}
		if err := sleep(ctx, s.jitter()); err != nil {
			return last, err
		}
		height, err := p.ScrollHeight(ctx)
		if err != nil {
			return last, fmt.Errorf("reading page height: %w", err)
		}
		log.Debug().Int("scroll", i+1).Int64("height", height).Msg("scrolled")
		if height == last {
			return height, nil
		}
		last = height
	}
	return last, fmt.Errorf("%w after %d scrolls", ErrNotSettled, maxScrolls)
}

func (s Settler) jitter() time.Duration {
	if s.MaxDelay <= s.MinDelay {
		return s.MinDelay
	}
	return s.MinDelay + time.Duration(rand.Int63n(int64(s.MaxDelay-s.MinDelay)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
