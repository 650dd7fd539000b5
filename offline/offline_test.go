package offline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"suapemap/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suape_mapa_empresas.html")
	require.NoError(t, os.WriteFile(path, []byte("<html>ok</html>"), 0644))

	got, err := New(path).Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", got)
}

func TestAcquireMissingIsUnavailable(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.html")).Acquire(context.Background())
	assert.ErrorIs(t, err, scraper.ErrUnavailable)
}

func TestAcquireDirectoryIsFailure(t *testing.T) {
	_, err := New(t.TempDir()).Acquire(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, scraper.ErrUnavailable)
}

func TestAcquireFixture(t *testing.T) {
	got, err := New("../testdata/fixtures/mapa_empresas.html").Acquire(context.Background())
	require.NoError(t, err)
	assert.Contains(t, got, `class="empresa"`)
}
