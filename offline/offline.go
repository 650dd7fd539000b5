// Package offline reads a copy of the company map saved by the operator
package offline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"suapemap/scraper"

	"github.com/rs/zerolog/log"
)

// EnvVar names the environment variable that overrides the saved page location
const EnvVar = "HTML_FALLBACK"

// Source reads the saved page from Path. It never touches the network
type Source struct {
	Path string
}

// New creates an offline source for path
func New(path string) *Source {
	return &Source{Path: path}
}

// Name identifies the source in logs
func (s *Source) Name() string { return "offline" }

// Acquire returns the saved document
func (s *Source) Acquire(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", s.Path).Msgf("offline mode: file not found. Save the page manually as %q or set %s", s.Path, EnvVar)
		return "", scraper.Unavailable("offline document %q not found", s.Path)
	}
	if err != nil {
		return "", fmt.Errorf("reading offline document: %w", err)
	}

	log.Info().Str("path", s.Path).Int("bytes", len(data)).Msg("reading offline HTML")
	return string(data), nil
}
