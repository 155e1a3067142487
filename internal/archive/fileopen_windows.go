//go:build windows

package archive

import (
	"os"

	"github.com/hpungsan/qsyntax/internal/errors"
)

// openFileNoFollow opens a file for writing. Windows has no O_NOFOLLOW;
// ValidatePath has already rejected symlinks.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// openFileNoFollowRead opens a file for reading.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInvalidRequest("file not found: " + path)
		}
		return nil, err
	}
	return f, nil
}
