// Package archive exports chat history to JSONL files and reads it back.
package archive

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/qsyntax/internal/errors"
	"github.com/hpungsan/qsyntax/internal/session"
)

// SchemaVersion is written to the header of every export.
const SchemaVersion = "1.0"

// ExportHeader is the first line of an export file.
type ExportHeader struct {
	QsyntaxExport bool   `json:"_qsyntax_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportOutput contains the result of Export.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes sessions to path: a header line, then one session per
// line. The file is written next to path and renamed into place, so an
// existing export survives a failed run.
func Export(ctx context.Context, path string, sessions []*session.Session, now time.Time) (*ExportOutput, error) {
	if err := ValidatePath(path, PathCheckWrite); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	header := ExportHeader{QsyntaxExport: true, SchemaVersion: SchemaVersion, ExportedAt: now.Unix()}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := enc.Encode(s); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted meanwhile
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{Path: path, Count: len(sessions), ExportedAt: header.ExportedAt}, nil
}

// LineError reports a line of an import file that was not usable.
type LineError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// maxLine bounds one JSONL line; a session with long replies can be large.
const maxLine = 16 << 20

// Read parses an export file. Unusable lines are reported and skipped;
// a file without the export header is rejected.
func Read(path string) ([]*session.Session, []LineError, error) {
	if err := ValidatePath(path, PathCheckRead); err != nil {
		return nil, nil, err
	}
	file, err := openFileNoFollowRead(path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, nil, err
		}
		return nil, nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	var (
		sessions   []*session.Session
		lineErrors []LineError
		sawHeader  bool
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if !sawHeader {
			var header ExportHeader
			if err := json.Unmarshal(line, &header); err != nil || !header.QsyntaxExport {
				return nil, nil, errors.NewInvalidRequest("not a qsyntax export (missing header line)")
			}
			sawHeader = true
			continue
		}

		var s session.Session
		if err := json.Unmarshal(line, &s); err != nil {
			lineErrors = append(lineErrors, LineError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if s.ID == "" {
			lineErrors = append(lineErrors, LineError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}
		if s.Messages == nil {
			s.Messages = []session.Message{}
		}
		sessions = append(sessions, &s)
	}

	if err := scanner.Err(); err != nil {
		lineErrors = append(lineErrors, LineError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}
	if !sawHeader {
		return nil, nil, errors.NewInvalidRequest("not a qsyntax export (empty file)")
	}

	return sessions, lineErrors, nil
}
