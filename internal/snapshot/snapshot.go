// Package snapshot reads and writes the flat JSON files the pipeline persists between runs.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load decodes the JSON file at path into out. A missing file is reported as found=false with a
// nil error.
func Load[T any](path string, out *T) (found bool, err error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = json.Unmarshal(contents, out)
	if err != nil {
		return true, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return true, nil
}

// Save replaces the file at path with the JSON encoding of value. The file is written next to
// its destination first and renamed into place, readers never observe a half written snapshot.
//
// Every element is put on its own line without indentation which keeps diffs between runs small.
func Save(path string, value any) error {
	encoded, err := json.MarshalIndent(value, "", "")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(append(encoded, '\n'))
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
