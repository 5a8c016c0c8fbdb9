package asm

import "testing"

func TestSplitLineLabelOpArgs(t *testing.T) {
	line, err := splitLine("loop: add rax, rbx ; comment", 1)
	if err != nil {
		t.Fatalf("splitLine: %v", err)
	}
	if line.Label != "loop" {
		t.Errorf("Label: got %q, want %q", line.Label, "loop")
	}
	if line.Op != "add" {
		t.Errorf("Op: got %q, want %q", line.Op, "add")
	}
	if len(line.Args) != 2 || line.Args[0] != "rax" || line.Args[1] != "rbx" {
		t.Errorf("Args: got %v, want [rax rbx]", line.Args)
	}
}

func TestSplitLineQuotedSemicolonNotAComment(t *testing.T) {
	line, err := splitLine(`db "a;b"`, 1)
	if err != nil {
		t.Fatalf("splitLine: %v", err)
	}
	if len(line.Args) != 1 || line.Args[0] != `"a;b"` {
		t.Errorf("Args: got %v, want [\"a;b\"]", line.Args)
	}
}

func TestSplitLineUnmatchedQuoteIsError(t *testing.T) {
	if _, err := splitLine(`db "unterminated`, 1); err == nil {
		t.Error("expected an error for an unmatched quote")
	}
}

func TestSplitLineEmptyArgumentIsError(t *testing.T) {
	if _, err := splitLine("add rax, , rbx", 1); err == nil {
		t.Error("expected an error for an empty argument")
	}
}

func TestSplitLineLabelOnlyNoOp(t *testing.T) {
	line, err := splitLine("done:", 1)
	if err != nil {
		t.Fatalf("splitLine: %v", err)
	}
	if line.Label != "done" || line.Op != "" {
		t.Errorf("got Label=%q Op=%q, want Label=done Op=empty", line.Label, line.Op)
	}
}

func TestSplitLineQuoteInsideAddressComma(t *testing.T) {
	line, err := splitLine(`mov rax, [rbx+8], 'a,b'`, 1)
	if err != nil {
		t.Fatalf("splitLine: %v", err)
	}
	if len(line.Args) != 3 {
		t.Fatalf("Args: got %v, want 3 elements", line.Args)
	}
	if line.Args[2] != "'a,b'" {
		t.Errorf("Args[2]: got %q, want %q", line.Args[2], "'a,b'")
	}
}

func TestValidateLabelNameRejectsReserved(t *testing.T) {
	if err := validateLabelName("rax"); err == nil {
		t.Error("expected register name to be rejected as a label")
	}
	if err := validateLabelName("qword"); err == nil {
		t.Error("expected size keyword to be rejected as a label")
	}
	if err := validateLabelName("_valid.Name9"); err != nil {
		t.Errorf("expected a valid name to pass, got %v", err)
	}
}

func TestResolveLabelNameLocalRewrite(t *testing.T) {
	got, err := resolveLabelName(".loop", "main")
	if err != nil {
		t.Fatalf("resolveLabelName: %v", err)
	}
	if got != "main.loop" {
		t.Errorf("got %q, want %q", got, "main.loop")
	}
	if _, err := resolveLabelName(".loop", ""); err == nil {
		t.Error("expected an error for a local label with no preceding non-local label")
	}
}
