package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"go_irimager/core"
)

// MinCaptureSpace is the free space below which a capture run is refused.
const MinCaptureSpace int64 = 100 * core.BytesPerMB

// DiskSpaceInfo contains information about disk space.
type DiskSpaceInfo struct {
	Path        string
	Total       int64
	Free        int64
	UsedPercent float64
}

// DiskSpaceError indicates a disk space problem.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, core.FormatBytes(e.Required), core.FormatBytes(e.Available))
}

// GetDiskSpace returns disk space information for the filesystem holding
// path. A path that does not exist yet is resolved through its nearest
// existing parent, so the output directory can be checked before it is
// created.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			break
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, fmt.Errorf("cannot access path %s", path)
		}
		abs = parent
	}

	total, free, err := getDiskSpace(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to get disk space for %s: %w", abs, err)
	}

	info := &DiskSpaceInfo{Path: abs, Total: total, Free: free}
	if total > 0 {
		info.UsedPercent = float64(total-free) / float64(total) * 100
	}
	return info, nil
}

// CheckDiskSpace verifies there is at least requiredBytes free at path.
// Returns a *DiskSpaceError when there is not.
func CheckDiskSpace(path string, requiredBytes int64) error {
	info, err := GetDiskSpace(path)
	if err != nil {
		return err
	}
	if info.Free < requiredBytes {
		return &DiskSpaceError{Path: info.Path, Required: requiredBytes, Available: info.Free}
	}
	return nil
}
