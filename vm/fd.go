package vm

import (
	"os"
	"path/filepath"
	"strings"
)

const maxFDs = 16

// fdWrapper owns one open host file or stream by value, per the design
// note that the FD table should own wrappers directly rather than via
// smart pointers: there is nothing to alias, so there is nothing to leak.
type fdWrapper struct {
	inUse      bool
	interactive bool // stdin-like: a zero-byte read means "would block", not EOF
	file       *os.File
}

// FDTable is the CPU's fixed-capacity table of open file descriptors.
type FDTable struct {
	slots   [maxFDs]fdWrapper
	rootDir string
}

func NewFDTable(rootDir string) *FDTable {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		abs = rootDir
	}
	t := &FDTable{rootDir: abs}
	t.slots[0] = fdWrapper{inUse: true, interactive: true, file: os.Stdin}
	t.slots[1] = fdWrapper{inUse: true, file: os.Stdout}
	t.slots[2] = fdWrapper{inUse: true, file: os.Stderr}
	return t
}

// sanitizePath rejects absolute paths and any path component that escapes
// rootDir, mirroring the host-side file device's traversal guard.
func (t *FDTable) sanitizePath(path string) (string, bool) {
	if filepath.IsAbs(path) || strings.Contains(path, "..") {
		return "", false
	}
	full := filepath.Join(t.rootDir, path)
	rel, err := filepath.Rel(t.rootDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}

// Alloc finds the lowest free slot above the standard streams (0-2), or -1
// if none is free.
func (t *FDTable) Alloc() int {
	for i := 3; i < maxFDs; i++ {
		if !t.slots[i].inUse {
			return i
		}
	}
	return -1
}

func (t *FDTable) InUse(fd int) bool {
	return fd >= 0 && fd < maxFDs && t.slots[fd].inUse
}

func (t *FDTable) Get(fd int) (*fdWrapper, bool) {
	if !t.InUse(fd) {
		return nil, false
	}
	return &t.slots[fd], true
}

// Open resolves name under rootDir and opens it with the given host flags
// and mode, storing the result at the slot Alloc picks.
func (t *FDTable) Open(name string, flag int, perm os.FileMode) (int, error) {
	fd := t.Alloc()
	if fd < 0 {
		return -1, InsufficientFDs
	}
	full, ok := t.sanitizePath(name)
	if !ok {
		return -1, FilePermissions
	}
	f, err := os.OpenFile(full, flag, perm)
	if err != nil {
		if os.IsPermission(err) {
			return -1, FilePermissions
		}
		return -1, IOFailure
	}
	t.slots[fd] = fdWrapper{inUse: true, file: f}
	return fd, nil
}

// Close closes and frees fd, ignoring the standard streams.
func (t *FDTable) Close(fd int) error {
	w, ok := t.Get(fd)
	if !ok {
		return FDNotInUse
	}
	if fd > 2 && w.file != nil {
		w.file.Close()
	}
	t.slots[fd] = fdWrapper{}
	return nil
}

// CloseAll closes every in-use descriptor above the standard streams; the
// CPU calls this on both normal and error termination.
func (t *FDTable) CloseAll() {
	for i := 3; i < maxFDs; i++ {
		if t.slots[i].inUse {
			t.Close(i)
		}
	}
}
