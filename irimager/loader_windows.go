//go:build windows && !irstub

package irimager

import (
	"golang.org/x/sys/windows"
)

type dllLibrary struct {
	handle windows.Handle
}

func openLibrary(path string) (library, error) {
	handle, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, err
	}
	return &dllLibrary{handle: handle}, nil
}

func (l *dllLibrary) lookup(symbol string) (uintptr, error) {
	return windows.GetProcAddress(l.handle, symbol)
}

func (l *dllLibrary) close() error {
	if l.handle == 0 {
		return nil
	}
	err := windows.FreeLibrary(l.handle)
	l.handle = 0
	return err
}
