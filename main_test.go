package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/config"
	"github.com/example/khutwa/internal/progress"
	"github.com/example/khutwa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPrintUnits(t *testing.T) {
	var out bytes.Buffer
	units := catalog.Default().Units()[:3]

	require.NoError(t, printUnits(&out, units, []string{"alif"}, true))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Contains(t, string(lines[1]), "completed")
	assert.Contains(t, string(lines[2]), "open")
	assert.Contains(t, string(lines[3]), "locked")

	out.Reset()
	require.NoError(t, printUnits(&out, units, nil, false))
	assert.NotContains(t, out.String(), "locked")
}

func TestPrintProgress(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	a := &app{
		cfg:     config.DefaultConfig(),
		log:     zap.NewNop().Sugar(),
		catalog: cat,
		store:   progress.NewStore(progress.NewMemoryBackend(), progress.WithKnownUnits(cat.Has)),
	}
	require.NoError(t, a.store.SaveLearner(ctx, models.Learner{ID: "7", Name: "Mona"}))
	_, err := a.store.ApplyCompletion(ctx, "7", "alif", 45)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printProgress(ctx, &out, a, "7"))
	assert.Contains(t, out.String(), "Mona (7)")
	assert.Contains(t, out.String(), "level 3")
	assert.Contains(t, out.String(), "units 1/7: alif")

	out.Reset()
	require.NoError(t, printProgress(ctx, &out, a, "unknown"))
	assert.Contains(t, out.String(), "units 0/7")
}

func TestPrintNotifier(t *testing.T) {
	var out bytes.Buffer
	ba, _ := catalog.Default().Lookup("ba")
	require.NoError(t, printNotifier{w: &out}.Remind(context.Background(), "7", ba))
	assert.Equal(t, "reminder for 7: ب باء (ba)\n", out.String())
}

func TestLoadCatalog(t *testing.T) {
	cat, err := loadCatalog(config.CatalogConfig{})
	require.NoError(t, err)
	assert.Equal(t, 7, cat.Len())

	cat, err = loadCatalog(config.CatalogConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)
	assert.Equal(t, 7, cat.Len())

	path := filepath.Join(t.TempDir(), "units.yaml")
	require.NoError(t, catalog.WriteFile(path, catalog.Default().Units()[:2]))
	cat, err = loadCatalog(config.CatalogConfig{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}
