package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"suapemap/config"
	"suapemap/extract"
	"suapemap/feature"
	"suapemap/offline"
	"suapemap/scraper"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unavailable(name string) scraper.Source {
	return scraper.SourceFunc{ID: name, Fn: func(context.Context) (string, error) {
		return "", scraper.Unavailable("%s not installed", name)
	}}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutputPath = filepath.Join(dir, "empresas_suape.geojson")
	cfg.OfflinePath = filepath.Join(dir, "suape_mapa_empresas.html")
	return cfg
}

func TestRunExhaustedWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	svc := scraper.NewService(extract.NewParser(),
		unavailable("browser"),
		unavailable("network"),
		offline.New(cfg.OfflinePath),
	)

	res, err := run(context.Background(), cfg, svc, false)
	require.NoError(t, err, "exhaustion is not a process failure")
	assert.Nil(t, res)

	_, statErr := os.Stat(cfg.OutputPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no output file on exhaustion")
}

func TestRunExhaustedLogsOneError(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	cfg := testConfig(t)
	svc := scraper.NewService(extract.NewParser(),
		unavailable("browser"),
		unavailable("network"),
		offline.New(cfg.OfflinePath),
	)
	_, err := run(context.Background(), cfg, svc, false)
	require.NoError(t, err)

	errorLines := 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, `"level":"error"`) {
			errorLines++
		}
	}
	assert.Equal(t, 1, errorLines, buf.String())
}

func TestRunOfflineFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.OfflinePath = "../testdata/fixtures/mapa_empresas.html"
	require.NoError(t, os.WriteFile(cfg.OutputPath, []byte("previous run"), 0644))

	svc := scraper.NewService(extract.NewParser(),
		unavailable("browser"),
		scraper.SourceFunc{ID: "network", Fn: func(context.Context) (string, error) {
			return "", errors.New("no route to host")
		}},
		offline.New(cfg.OfflinePath),
	)

	res, err := run(context.Background(), cfg, svc, true)
	require.NoError(t, err)
	assert.Equal(t, "offline", res.Source)

	written, err := feature.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	require.Len(t, written.Features, 3)
	assert.Equal(t, []float64{-35.02, -8.35}, written.Features[0].Geometry.Coordinates)
}

func TestRunLegacyFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Format = config.FormatJSON
	svc := scraper.NewService(extract.NewParser(), offline.New("../testdata/fixtures/mapa_empresas.html"))

	_, err := run(context.Background(), cfg, svc, false)
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Coordenadas"`)
}

func TestRunLegacyFormatDefaultName(t *testing.T) {
	fixture, err := filepath.Abs("../testdata/fixtures/mapa_empresas.html")
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg := config.Default()
	cfg.Format = config.FormatJSON
	svc := scraper.NewService(extract.NewParser(), offline.New(fixture))

	_, err = run(context.Background(), cfg, svc, false)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "empresas_suape.json"))
	assert.NoFileExists(t, filepath.Join(dir, "empresas_suape.geojson"))
}

func TestRunWriteFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputPath = filepath.Join(t.TempDir(), "missing-dir", "out.geojson")
	svc := scraper.NewService(extract.NewParser(), offline.New("../testdata/fixtures/mapa_empresas.html"))

	_, err := run(context.Background(), cfg, svc, false)
	assert.ErrorContains(t, err, "writing output")
}

func TestBuildSourcesOrder(t *testing.T) {
	cfg := testConfig(t)
	sources, closeSources := buildSources(cfg)
	defer closeSources()

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"browser", "network", "offline"}, names)

	cfg.RedisAddr = "127.0.0.1:0"
	cached, closeCached := buildSources(cfg)
	defer closeCached()
	require.Len(t, cached, 3)
	assert.Equal(t, "browser", cached[0].Name())
	assert.Equal(t, "offline", cached[2].Name())
}
