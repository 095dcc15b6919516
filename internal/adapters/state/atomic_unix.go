//go:build !windows

package state

import (
	"os"

	"github.com/google/renameio/v2"
)

// atomicWriteFile replaces path atomically so a crashed write can never
// leave a torn snapshot or report behind. Unix builds go through renameio.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
