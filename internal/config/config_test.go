package config

import (
	"os"
	"path/filepath"
	"testing"

	"coursetable/internal/curriculum"
	"coursetable/internal/offerings"

	"github.com/stretchr/testify/require"
)

func TestDefaultCurriculaResolve(t *testing.T) {
	cfg := Default()
	curricula, err := cfg.ScheduledCurricula()
	require.NoError(t, err)
	require.Len(t, curricula, len(curriculum.Defaults()))
	for _, cur := range curricula {
		require.Equal(t, "data", filepath.Dir(cur.TreeFile), cur.Key)
		require.Equal(t, "data", filepath.Dir(cur.OfferingsFile), cur.Key)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)
	require.Equal(t, Default().DataDir, cfg.DataDir)
	require.Equal(t, offerings.DefaultFetchConfig(), cfg.Catalog.Fetch)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		data_dir: "snapshots",
		catalog: {fetch: {max_pages: 3}},
		schedule: {curricula: ["custom"]},
		curricula: {
			custom: {
				heading: "Custom Program",
				curriculum_ids: ["42"],
				tree_file: "tree.json",
				offerings_file: "offerings.json",
			},
		},
	}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "snapshots", cfg.DataDir)
	require.Equal(t, 3, cfg.Catalog.Fetch.MaxPages)
	require.Equal(t, offerings.DefaultFetchConfig().PageSize, cfg.Catalog.Fetch.PageSize)
	require.Contains(t, cfg.Curricula, "master-informatics")

	scheduled, err := cfg.ScheduledCurricula()
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	require.Equal(t, "Custom Program", scheduled[0].Heading)
	require.Equal(t, filepath.Join("snapshots", "tree.json"), scheduled[0].TreeFile)
	require.Contains(t, scheduled[0].TreeURL, "42")
}

func TestUnknownCurriculum(t *testing.T) {
	_, err := Default().Curriculum("nope")
	require.ErrorContains(t, err, "unknown curriculum")
}
