//go:build (darwin || linux || windows) && !irstub

package irimager

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// bindLibrary opens path and registers the SDK function table against it.
// A missing symbol closes the library and fails the whole load.
func bindLibrary(path string) (Native, func() error, error) {
	lib, err := openLibrary(path)
	if err != nil {
		return nil, nil, err
	}

	funcs := &nativeFuncs{}
	for _, sym := range funcs.symbols() {
		addr, err := lib.lookup(symbolPrefix + sym.name)
		if err != nil {
			lib.close()
			return nil, nil, fmt.Errorf("symbol %s%s: %w", symbolPrefix, sym.name, err)
		}
		purego.RegisterFunc(sym.fptr, addr)
	}

	return funcs, lib.close, nil
}
