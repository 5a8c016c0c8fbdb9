package vm

import (
	"os"
	"testing"
)

func TestFDTableOpenWriteCloseRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "csx64_fd_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	table := NewFDTable(dir)

	fd, err := table.Open("out.txt", os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if fd < 3 {
		t.Errorf("Open: got fd %d, want >= 3 (0-2 are stdio)", fd)
	}

	w, ok := table.Get(fd)
	if !ok {
		t.Fatal("Get: descriptor not in use after Open")
	}
	if _, err := w.file.WriteString("hello"); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := table.Close(fd); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if table.InUse(fd) {
		t.Error("InUse should be false after Close")
	}

	got, err := os.ReadFile(dir + "/out.txt")
	if err != nil || string(got) != "hello" {
		t.Errorf("file contents: got %q err=%v, want %q/nil", got, err, "hello")
	}
}

func TestFDTableRejectsPathTraversal(t *testing.T) {
	dir, err := os.MkdirTemp("", "csx64_fd_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	table := NewFDTable(dir)

	if _, ok := table.sanitizePath("../escape.txt"); ok {
		t.Error("sanitizePath should reject paths escaping rootDir")
	}
	if _, ok := table.sanitizePath("/etc/passwd"); ok {
		t.Error("sanitizePath should reject absolute paths")
	}
	if _, ok := table.sanitizePath("sub/file.txt"); !ok {
		t.Error("sanitizePath should accept a relative path within rootDir")
	}
}

func TestFDTableStdStreamsPrepopulated(t *testing.T) {
	table := NewFDTable(".")
	for fd := 0; fd <= 2; fd++ {
		if !table.InUse(fd) {
			t.Errorf("fd %d should be pre-populated", fd)
		}
	}
	w, _ := table.Get(0)
	if !w.interactive {
		t.Error("stdin (fd 0) should be marked interactive")
	}
	w1, _ := table.Get(1)
	if w1.interactive {
		t.Error("stdout (fd 1) should not be marked interactive")
	}
}
