package vm

import "testing"

func TestFPUInitAllSlotsEmpty(t *testing.T) {
	var f FPU
	f.Init()
	for i := 0; i < 8; i++ {
		if f.tag(i) != tagEmpty {
			t.Errorf("slot %d: tag = %d, want tagEmpty after Init", i, f.tag(i))
		}
	}
}

func TestFPUPushPopLeavesSlotsOccupied(t *testing.T) {
	var f FPU
	f.Init()
	for i := 0; i < 3; i++ {
		if err := f.Push(float64(i)); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	occupied := 0
	for i := 0; i < 8; i++ {
		if f.tag(i) != tagEmpty {
			occupied++
		}
	}
	if occupied != 3 {
		t.Errorf("occupied slots after 3 pushes: got %d, want 3", occupied)
	}
	if v, err := f.Read(0); err != nil || v != 2 {
		t.Errorf("ST(0): got %v err=%v, want 2/nil", v, err)
	}
}

func TestFPUStackOverflow(t *testing.T) {
	var f FPU
	f.Init()
	for i := 0; i < 8; i++ {
		if err := f.Push(float64(i)); err != nil {
			t.Fatalf("Push(%d): unexpected error %v", i, err)
		}
	}
	if err := f.Push(8); err != FPUStackOverflow {
		t.Errorf("ninth push: got %v, want FPUStackOverflow", err)
	}
}

func TestFPUStackUnderflow(t *testing.T) {
	var f FPU
	f.Init()
	if _, err := f.Pop(); err != FPUStackUnderflow {
		t.Errorf("pop of empty stack: got %v, want FPUStackUnderflow", err)
	}
}
