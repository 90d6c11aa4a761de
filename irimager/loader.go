package irimager

import (
	"fmt"
	"os"
)

// library is an opened shared object.
type library interface {
	lookup(symbol string) (uintptr, error)
	close() error
}

// Load opens the SDK shared library at path, binds every evo_irimager_*
// entry point and returns an Imager that owns the handle. Close releases it.
//
// Errors wrap ErrLoad; on platforms without runtime loading they wrap
// ErrNotBuilt as well.
func Load(path string, opts ...Option) (*Imager, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: library path is empty", ErrLoad)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	native, release, err := bindLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	im := New(native, opts...)
	im.release = release
	im.path = path
	im.logger.Debug("native library loaded")
	return im, nil
}
