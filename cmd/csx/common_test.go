package main

import (
	"os"
	"testing"

	"github.com/csx64/csx64/asm"
	"github.com/csx64/csx64/link"
	"github.com/csx64/csx64/vm"
)

func TestExitCodeForNil(t *testing.T) {
	if got := exitCodeFor(nil); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestExitCodeForAssembleError(t *testing.T) {
	_, err := asm.Assemble("segment .text\nbogus rax\n", "t.asm")
	if err == nil {
		t.Fatal("expected an assemble error")
	}
	if got := exitCodeFor(err); got <= 0 || got > 11 {
		t.Errorf("got %d, want a small positive assemble exit code", got)
	}
}

func TestExitCodeForLinkError(t *testing.T) {
	err := &link.Error{Kind: link.MissingSymbol, Msg: "boom"}
	if got := exitCodeFor(err); got != int(link.MissingSymbol)+1 {
		t.Errorf("got %d, want %d", got, int(link.MissingSymbol)+1)
	}
}

func TestExitCodeForIOError(t *testing.T) {
	_, err := os.Open("/nonexistent/path/for/test")
	wrapped := &ioError{err}
	if got := exitCodeFor(wrapped); got != ioErrorCode {
		t.Errorf("got %d, want %d", got, ioErrorCode)
	}
}

func TestExitCodeForRuntimeError(t *testing.T) {
	if got := exitCodeFor(vm.UnhandledSyscall); got != vm.ExecErrorReturnCode {
		t.Errorf("got %d, want %d", got, vm.ExecErrorReturnCode)
	}
}

func TestIsSourceFile(t *testing.T) {
	if !isSourceFile("foo.asm") {
		t.Error("expected foo.asm to be recognized as a source file")
	}
	if !isSourceFile("foo.ASM") {
		t.Error("expected extension matching to be case-insensitive")
	}
	if isSourceFile("foo.o") {
		t.Error("did not expect .o to be recognized as a source file")
	}
}
