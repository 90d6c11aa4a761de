//go:build irstub || !(darwin || linux || windows)

// Stub loader for platforms without runtime library loading.
// Build with: go build -tags irstub

package irimager

// bindLibrary always fails; use New with a Native implementation instead.
func bindLibrary(path string) (Native, func() error, error) {
	return nil, nil, ErrNotBuilt
}
