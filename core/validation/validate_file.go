package validation

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExistsError indicates a file does not exist with a descriptive message
type FileExistsError struct {
	Path    string
	Message string
}

func (e *FileExistsError) Error() string {
	return e.Message
}

// CheckFileExists checks if a regular file exists at the given path.
//
// Returns nil if the file exists, or a *FileExistsError describing the failure.
func CheckFileExists(path string) error {
	if path == "" {
		return &FileExistsError{Path: path, Message: "file path cannot be empty"}
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return &FileExistsError{Path: path, Message: fmt.Sprintf("file not found: %s", path)}
	case err != nil:
		return &FileExistsError{Path: path, Message: fmt.Sprintf("error checking file %s: %v", path, err)}
	case info.IsDir():
		return &FileExistsError{Path: path, Message: fmt.Sprintf("path is a directory, not a file: %s", path)}
	}
	return nil
}

// CheckDirWritable creates dir if needed and proves a file can be written
// inside it. Snapshots and the capture database both live there.
func CheckDirWritable(dir string) error {
	if dir == "" {
		return fmt.Errorf("directory path cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".irimager-write-*")
	if err != nil {
		return fmt.Errorf("cannot write to %s: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}
