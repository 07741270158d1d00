package fsutil

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteFile replaces the file at `name` with `data`, creating parent
// directories as needed. The contents are written to a temporary file in the
// same directory and renamed over the target, so readers see either the old
// file or the new one.
func WriteFile(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	err = os.Chmod(tmpName, perm)
	if err != nil {
		return err
	}
	return os.Rename(tmpName, name)
}

// WriteJSON writes `value` as 4-space indented JSON through WriteFile.
func WriteJSON(name string, value any) error {
	out, err := json.MarshalIndent(value, "", "    ")
	if err != nil {
		return err
	}
	return WriteFile(name, append(out, '\n'), 0644)
}
