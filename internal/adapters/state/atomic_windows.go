//go:build windows

package state

import (
	"os"
	"path/filepath"
)

// atomicWriteFile replaces path atomically so a crashed write can never
// leave a torn snapshot or report behind. renameio has no Windows support,
// so this build writes a sibling temp file and renames it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// Same-directory temp file keeps the rename on one volume, where
	// os.Rename is atomic on Windows.
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return err
	}
	return nil
}
