package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type entry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")

	var out []entry
	found, err := Load(path, &out)
	require.NoError(t, err)
	require.False(t, found)

	in := []entry{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	require.NoError(t, Save(path, in))

	found, err = Load(path, &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(contents), "\n\"id\": 1"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0600))

	var out []entry
	found, err := Load(path, &out)
	require.True(t, found)
	require.Error(t, err)
}
