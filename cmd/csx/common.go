package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/csx64/csx64/asm"
	"github.com/csx64/csx64/link"
	"github.com/csx64/csx64/obj"
	"github.com/csx64/csx64/vm"
	"golang.org/x/sync/errgroup"
)

// ioErrorCode is the exit-code band reserved for host I/O failures
// (file not found, permission denied, corrupt container), per spec §6.
const ioErrorCode = 100

func isSourceFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".asm")
}

// assembleAll assembles every .asm pathspec concurrently, since each
// Assemble call is independent of the others until link time.
func assembleAll(paths []string) ([]*obj.File, error) {
	files := make([]*obj.File, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			src, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("%w", &ioError{err})
			}
			f, err := asm.Assemble(string(src), p)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// loadObjectFile reads an already-assembled .o file from disk.
func loadObjectFile(path string) (*obj.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ioError{err}
	}
	defer f.Close()
	of, err := obj.ReadFile(f)
	if err != nil {
		return nil, &ioError{err}
	}
	return of, nil
}

// resolveStartFile loads the `_start` bootstrap module from
// "<rootdir>/_start.o".
func resolveStartFile(rootDir string) (*obj.File, error) {
	path := filepath.Join(rootDir, "_start.o")
	f, err := loadObjectFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolving _start bootstrap (--rootdir %q): %w", rootDir, err)
	}
	return f, nil
}

// buildObjects assembles/loads every pathspec into object files ready for
// linking, prepending the `_start` bootstrap unless some supplied file
// already declares `_start` as external. Such a supplied file keeps its
// position in the list; it is not moved to the front.
func buildObjects(paths []string, rootDir string) ([]*obj.File, error) {
	var files []*obj.File
	var toAssemble []string
	var toAssembleIdx []int
	loaded := make([]*obj.File, len(paths))
	for i, p := range paths {
		if isSourceFile(p) {
			toAssemble = append(toAssemble, p)
			toAssembleIdx = append(toAssembleIdx, i)
			continue
		}
		of, err := loadObjectFile(p)
		if err != nil {
			return nil, err
		}
		loaded[i] = of
	}
	if len(toAssemble) > 0 {
		assembled, err := assembleAll(toAssemble)
		if err != nil {
			return nil, err
		}
		for j, idx := range toAssembleIdx {
			loaded[idx] = assembled[j]
		}
	}
	files = loaded

	needsStart := true
	for _, f := range files {
		if _, ok := f.External["_start"]; ok {
			needsStart = false
			break
		}
	}
	if needsStart {
		start, err := resolveStartFile(rootDir)
		if err != nil {
			return nil, err
		}
		files = append([]*obj.File{start}, files...)
	}
	return files, nil
}

// ioError marks a host-level I/O failure for exit-code classification,
// distinct from the assemble/link/runtime error taxonomies.
type ioError struct{ err error }

func (e *ioError) Error() string { return e.err.Error() }
func (e *ioError) Unwrap() error { return e.err }

// exitCodeFor maps an error returned from the command tree onto the
// small numeric exit-code scheme of spec §6: assemble and link errors
// both exit with their error kind plus one (so the two ranges overlap),
// I/O failures exit with 100, runtime errors with the VM's exec-error
// code, and anything unclassified falls back to 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ae *asm.Error
	if errors.As(err, &ae) {
		return int(ae.Kind) + 1
	}
	var le *link.Error
	if errors.As(err, &le) {
		return int(le.Kind) + 1
	}
	var ioe *ioError
	if errors.As(err, &ioe) {
		return ioErrorCode
	}
	var re vm.RuntimeError
	if errors.As(err, &re) {
		return vm.ExecErrorReturnCode
	}
	return 1
}
