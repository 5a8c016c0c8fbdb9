package asm

import (
	"errors"
	"testing"

	"github.com/csx64/csx64/link"
	"github.com/csx64/csx64/obj"
	"github.com/csx64/csx64/vm"
)

func TestAssembleGlobalLabelAndData(t *testing.T) {
	src := `
global greeting
segment .rodata
greeting: db "hi", 0
`
	f, err := Assemble(src, "t.asm")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if _, ok := f.Global["greeting"]; !ok {
		t.Errorf("expected greeting to be global")
	}
	if string(f.Rodata) != "hi\x00" {
		t.Errorf("Rodata: got %q, want %q", f.Rodata, "hi\x00")
	}
}

func TestAssembleEquAndReference(t *testing.T) {
	src := `
SIZE: equ 4+4
segment .bss
buf: resb SIZE
`
	f, err := Assemble(src, "t.asm")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if f.BssLen != 8 {
		t.Errorf("BssLen: got %d, want 8", f.BssLen)
	}
}

func TestAssembleLocalLabelRequiresNonlocal(t *testing.T) {
	src := `
segment .text
.loop: nop
`
	if _, err := Assemble(src, "t.asm"); err == nil {
		t.Error("expected an error for a local label with no preceding non-local label")
	}
}

func TestAssembleDuplicateSegmentIsError(t *testing.T) {
	src := `
segment .text
nop
segment .text
nop
`
	if _, err := Assemble(src, "t.asm"); err == nil {
		t.Error("expected an error for a segment specified twice")
	}
}

func TestAssembleUnknownInstructionIsError(t *testing.T) {
	_, err := Assemble("segment .text\nbogusinsn rax, rbx\n", "t.asm")
	if err == nil {
		t.Fatal("expected an error for an unknown mnemonic")
	}
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected an *asm.Error, got %T: %v", err, err)
	}
	if ae.Kind != UnknownOp {
		t.Errorf("Kind: got %v, want UnknownOp", ae.Kind)
	}
}

func TestAssembleEmptyFileIsError(t *testing.T) {
	_, err := Assemble("global foo\n", "t.asm")
	if err == nil {
		t.Fatal("expected an error for a file with no emitted content")
	}
	var ae *Error
	if !errors.As(err, &ae) || ae.Kind != EmptyFile {
		t.Errorf("expected an EmptyFile *asm.Error, got %v", err)
	}
}

func TestAssembleInstructionInBssIsError(t *testing.T) {
	src := `
segment .bss
nop
`
	if _, err := Assemble(src, "t.asm"); err == nil {
		t.Error("expected an error for an instruction inside .bss")
	}
}

func TestAssembleCmpZeroFoldsToCmpz(t *testing.T) {
	withZero, err := Assemble("segment .text\ncmp rax, 0\n", "t.asm")
	if err != nil {
		t.Fatalf("Assemble cmp rax, 0: %v", err)
	}
	withNonzero, err := Assemble("segment .text\ncmp rax, 1\n", "t.asm")
	if err != nil {
		t.Fatalf("Assemble cmp rax, 1: %v", err)
	}
	if withZero.Text[0] == withNonzero.Text[0] {
		t.Errorf("expected cmp-zero to fold to a different opcode than a general cmp")
	}
}

func TestAssembleImulDispatchesByArgCount(t *testing.T) {
	if _, err := Assemble("segment .text\nimul rax\n", "t.asm"); err != nil {
		t.Errorf("imul with 1 operand: %v", err)
	}
	if _, err := Assemble("segment .text\nimul rax, rbx, 2\n", "t.asm"); err != nil {
		t.Errorf("imul with 3 operands: %v", err)
	}
	if _, err := Assemble("segment .text\nimul rax, rbx\n", "t.asm"); err == nil {
		t.Error("expected an error for imul with 2 operands")
	}
}

func TestAssembleKeepsLinkTimeHoleAndMarksClean(t *testing.T) {
	src := `
segment .text
start:
jmp start
`
	f, err := Assemble(src, "t.asm")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !f.Clean {
		t.Error("expected the finished file to be marked Clean")
	}
	// The jump target depends on .text's load address, which only the
	// linker knows, so the hole must survive assembly.
	if len(f.Holes[obj.SegText]) != 1 {
		t.Fatalf("expected exactly one remaining hole for the link-time origin, got %v", f.Holes[obj.SegText])
	}
}

// TestEndToEndAssembleLinkRun assembles a two-module program (an
// external-jumping bootstrap plus a main module that exits with a status
// code), links them, and runs the result to completion on the CPU,
// exercising the full encode/decode contract between asm, link, and vm.
func TestEndToEndAssembleLinkRun(t *testing.T) {
	startSrc := `
extern _start
segment .text
jmp _start
`
	mainSrc := `
global main
segment .text
main:
mov rax, 60
mov rdi, 42
syscall
`
	startFile, err := Assemble(startSrc, "start.asm")
	if err != nil {
		t.Fatalf("Assemble(start): %v", err)
	}
	mainFile, err := Assemble(mainSrc, "main.asm")
	if err != nil {
		t.Fatalf("Assemble(main): %v", err)
	}

	exe, err := link.Link([]*obj.File{startFile, mainFile}, "")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	cpu := vm.NewCPU(1, vm.IOHooks{})
	if err := cpu.Init(exe, nil, 0); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cpu.Tick(1000)

	if cpu.Running {
		t.Fatalf("expected the program to have halted")
	}
	if cpu.ReturnValue != 42 {
		t.Errorf("ReturnValue: got %d, want 42", cpu.ReturnValue)
	}
}
