//go:build (darwin || linux) && !irstub

package irimager

import (
	"github.com/ebitengine/purego"
)

type dlLibrary struct {
	handle uintptr
}

func openLibrary(path string) (library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}
	return &dlLibrary{handle: handle}, nil
}

func (l *dlLibrary) lookup(symbol string) (uintptr, error) {
	return purego.Dlsym(l.handle, symbol)
}

func (l *dlLibrary) close() error {
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	return err
}
