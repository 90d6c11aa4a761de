package irimager

import (
	"errors"
	"path/filepath"
	"testing"
	"unsafe"
)

func TestLoad_MissingLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libirimager.so")
	im, err := Load(path)
	if im != nil {
		t.Error("expected nil Imager")
	}
	if !errors.Is(err, ErrLoad) {
		t.Errorf("err = %v, want ErrLoad", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	if _, err := Load(""); !errors.Is(err, ErrLoad) {
		t.Errorf("err = %v, want ErrLoad", err)
	}
}

func TestCString(t *testing.T) {
	if cString("") != nil {
		t.Error("empty string should map to NULL")
	}
	p := cString("ab")
	b := unsafe.Slice(p, 3)
	if b[0] != 'a' || b[1] != 'b' || b[2] != 0 {
		t.Errorf("cString bytes = %v", b)
	}
}
