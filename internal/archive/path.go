package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/qsyntax/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // for import (read file)
	PathCheckWrite                      // for export (write file)
)

// ValidatePath checks an import or export path:
// 1. no ".." components
// 2. .jsonl extension
// 3. the file itself is not a symlink
// 4. for reads, the file exists
func ValidatePath(path string, mode PathCheckMode) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	info, err := os.Lstat(absPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return errors.NewInvalidRequest("path must not be a symlink")
	case err != nil && os.IsNotExist(err) && mode == PathCheckRead:
		return errors.NewInvalidRequest("file not found: " + path)
	}
	return nil
}

// ExportsDir returns the default export directory inside baseDir.
func ExportsDir(baseDir string) string {
	return filepath.Join(baseDir, "exports")
}

// DefaultPath returns baseDir/exports/chats-<timestamp>.jsonl.
func DefaultPath(baseDir string, now time.Time) string {
	return filepath.Join(ExportsDir(baseDir), "chats-"+now.Format("2006-01-02T150405")+".jsonl")
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
