package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"suapemap/extract"
	"suapemap/feature"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
)

// Result is the output of a successful run
type Result struct {
	Source     string
	Collection feature.Collection
	Attempts   []Attempt
}

// Service tries sources in order and keeps the first non-empty result
type Service struct {
	sources []Source
	parser  *extract.Parser
}

// NewService creates a pipeline over sources, tried in the given order
func NewService(parser *extract.Parser, sources ...Source) *Service {
	if parser == nil {
		parser = extract.NewParser()
	}
	return &Service{
		sources: slices.Clone(sources),
		parser:  parser,
	}
}

// Sources returns the names of the configured sources in order
func (s *Service) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// Run executes the fallback chain. Sources after the first success are never invoked
func (s *Service) Run(ctx context.Context) (*Result, error) {
	attempts := make([]Attempt, 0, len(s.sources))

	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline cancelled: %w", err)
		}

		attempt, features := s.try(ctx, src)
		attempts = append(attempts, attempt)

		logger := log.With().Str("source", attempt.Source).Dur("took", attempt.Duration).Logger()
		switch attempt.Status {
		case StatusUnavailable:
			logger.Info().Err(attempt.Err).Msg("source unavailable, trying next")
		case StatusFailed:
			logger.Warn().Err(attempt.Err).Msg("source failed, trying next")
		case StatusEmpty:
			logger.Warn().Int("failures", attempt.Failures).Msg("source yielded no companies, trying next")
		case StatusSucceeded:
			logger.Info().Int("companies", attempt.Features).Int("failures", attempt.Failures).Msg("source succeeded")
			return &Result{
				Source:     attempt.Source,
				Collection: feature.NewCollection(features),
				Attempts:   attempts,
			}, nil
		}
	}

	log.Error().Strs("tried", s.Sources()).Msg("no source could extract the companies")
	return nil, &ExhaustedError{Attempts: attempts}
}

func (s *Service) try(ctx context.Context, src Source) (attempt Attempt, features []feature.Feature) {
	attempt.Source = src.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			attempt.Status = StatusFailed
			attempt.Err = fmt.Errorf("panic: %v", r)
			features = nil
		}
		attempt.Duration = time.Since(start)
	}()

	log.Info().Str("source", attempt.Source).Msg("trying source")
	html, err := src.Acquire(ctx)
	if err != nil {
		attempt.Err = err
		attempt.Status = StatusFailed
		if errors.Is(err, ErrUnavailable) {
			attempt.Status = StatusUnavailable
		}
		return attempt, nil
	}

	features, failures, err := s.parser.ParseHTML(strings.NewReader(html), attempt.Source)
	if err != nil {
		attempt.Err = err
		attempt.Status = StatusFailed
		return attempt, nil
	}

	attempt.Features = len(features)
	attempt.Failures = len(failures)
	if len(features) == 0 {
		attempt.Status = StatusEmpty
		return attempt, nil
	}
	attempt.Status = StatusSucceeded
	return attempt, features
}
