package vm

import (
	"encoding/binary"
	"testing"

	"github.com/csx64/csx64/isa"
	"github.com/csx64/csx64/obj"
)

func newTestCPU(t *testing.T, text []byte) *CPU {
	t.Helper()
	c := NewCPU(1, IOHooks{})
	exe := &obj.Executable{TextLen: uint64(len(text)), Content: text}
	if err := c.Init(exe, nil, 0); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func TestThreeNopsThenSysExit(t *testing.T) {
	// nop; nop; nop; syscall
	c := newTestCPU(t, []byte{0x00, 0x00, 0x00, 0x03})
	c.R[isa.RAX] = sysExit
	c.R[isa.RDI] = 413

	executed := c.Tick(10)
	if executed != 4 {
		t.Errorf("executed: got %d, want 4", executed)
	}
	if c.Running {
		t.Error("CPU should have halted")
	}
	if c.ReturnValue != 413 {
		t.Errorf("ReturnValue: got %d, want 413", c.ReturnValue)
	}
	if c.Error != NoError {
		t.Errorf("Error: got %v, want NoError", c.Error)
	}
}

func TestMovImm64ThenHlt(t *testing.T) {
	settings := isa.BinarySettings{Mode: isa.ModeRegImm, Size: isa.Size64}
	var text []byte
	text = append(text, 0x50)             // mov
	text = append(text, settings.Encode())
	text = append(text, byte(isa.RAX))    // dest register
	imm := make([]byte, 8)
	binary.LittleEndian.PutUint64(imm, 0x93f7a810f45e0e3c)
	text = append(text, imm...)
	text = append(text, 0x01) // hlt

	c := newTestCPU(t, text)
	c.Tick(10)

	if c.R[isa.RAX] != 0x93f7a810f45e0e3c {
		t.Errorf("RAX after mov: got 0x%X, want 0x93f7a810f45e0e3c", c.R[isa.RAX])
	}
	if c.Running {
		t.Error("CPU should have halted on hlt")
	}
}

func TestAddSetsCarryAndZero(t *testing.T) {
	settings := isa.BinarySettings{Mode: isa.ModeRegImm, Size: isa.Size8}
	text := []byte{0x10, settings.Encode(), byte(isa.RAX), 0x01}
	c := newTestCPU(t, text)
	c.R[isa.RAX] = 0xFF

	c.Tick(1)

	if c.GetReg(isa.RAX, isa.Size8, false) != 0 {
		t.Errorf("RAX after add: got 0x%X, want 0", c.GetReg(isa.RAX, isa.Size8, false))
	}
	if !c.CF() {
		t.Error("CF should be set (0xFF + 0x01 carries out of byte width)")
	}
	if !c.ZF() {
		t.Error("ZF should be set (result is zero)")
	}
}

func TestRepMovsbOneTickVsManyTicks(t *testing.T) {
	// rep movsb
	text := []byte{0x90}
	mkCPU := func(otrf bool) *CPU {
		c := newTestCPU(t, text)
		c.Mem.ReadonlyBarrier = 0
		c.R[isa.RSI] = 100
		c.R[isa.RDI] = 200
		c.R[isa.RCX] = 3
		c.SetOTRF(otrf)
		for i := uint64(0); i < 3; i++ {
			c.Mem.WriteBytes(100+i, []byte{byte(i + 1)})
		}
		return c
	}

	oneTick := mkCPU(true)
	oneTick.Tick(1)
	if oneTick.R[isa.RCX] != 0 {
		t.Errorf("OTRF=1: RCX after one tick: got %d, want 0 (loop completes in one tick)", oneTick.R[isa.RCX])
	}

	manyTick := mkCPU(false)
	ticksUsed := 0
	for manyTick.R[isa.RCX] != 0 && ticksUsed < 10 {
		manyTick.Tick(1)
		ticksUsed++
	}
	if ticksUsed != 3 {
		t.Errorf("OTRF=0: ticks to drain RCX=3: got %d, want 3 (one element per tick)", ticksUsed)
	}

	for i := uint64(0); i < 3; i++ {
		a, _ := oneTick.Mem.ReadBytes(200+i, 1)
		b, _ := manyTick.Mem.ReadBytes(200+i, 1)
		if a[0] != b[0] || a[0] != byte(i+1) {
			t.Errorf("byte %d: OTRF=1 produced %d, OTRF=0 produced %d, want %d", i, a[0], b[0], i+1)
		}
	}
}
