package patch

import (
	"io/fs"
	"sync"
)

// overlayFileSystem records writes and removals in memory on top of a base
// that is only ever read.
type overlayFileSystem struct {
	base FileSystem

	mu      sync.Mutex
	files   map[string][]byte
	removed map[string]bool
}

// NewOverlayFileSystem wraps base so that mutations stay in memory. It backs
// dry runs.
func NewOverlayFileSystem(base FileSystem) FileSystem {
	return &overlayFileSystem{
		base:    base,
		files:   make(map[string][]byte),
		removed: make(map[string]bool),
	}
}

func (o *overlayFileSystem) ReadFile(name string) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.removed[name] {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	if data, ok := o.files[name]; ok {
		return append([]byte(nil), data...), nil
	}
	return o.base.ReadFile(name)
}

func (o *overlayFileSystem) WriteFile(name string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[name] = append([]byte(nil), data...)
	delete(o.removed, name)
	return nil
}

func (o *overlayFileSystem) Remove(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	exists, err := o.existsLocked(name)
	if err != nil {
		return err
	}
	if !exists {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(o.files, name)
	o.removed[name] = true
	return nil
}

func (o *overlayFileSystem) Exists(name string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.existsLocked(name)
}

func (o *overlayFileSystem) existsLocked(name string) (bool, error) {
	if o.removed[name] {
		return false, nil
	}
	if _, ok := o.files[name]; ok {
		return true, nil
	}
	return o.base.Exists(name)
}
