package vm

import "testing"

func TestMemoryBarriers(t *testing.T) {
	m := NewMemory(64, 0)
	m.ExeBarrier = 16
	m.ReadonlyBarrier = 32
	m.StackBarrier = 64

	if !m.CheckExecute(0) || m.CheckExecute(16) {
		t.Errorf("CheckExecute boundary wrong: addr 0 ok=%v, addr 16 ok=%v", m.CheckExecute(0), m.CheckExecute(16))
	}
	if m.WriteBytes(16, []byte{1}) {
		t.Error("write below readonly_barrier should fail")
	}
	if !m.WriteBytes(32, []byte{1}) {
		t.Error("write at readonly_barrier should succeed")
	}
	if m.WriteBytes(60, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Error("write past end of memory should fail")
	}
}

func TestMemoryReadWriteUintRoundTrip(t *testing.T) {
	m := NewMemory(64, 0)
	m.ReadonlyBarrier = 0
	if !m.WriteUint(8, 8, 0x0102030405060708) {
		t.Fatal("WriteUint failed")
	}
	v, ok := m.ReadUint(8, 8)
	if !ok || v != 0x0102030405060708 {
		t.Errorf("ReadUint round trip: got 0x%X ok=%v, want 0x0102030405060708", v, ok)
	}
}

func TestMemoryResize(t *testing.T) {
	m := NewMemory(16, 32)
	if !m.WriteUint(0, 8, 0xAABBCCDDEEFF0011) {
		t.Fatal("setup write failed")
	}
	if !m.Resize(32) {
		t.Fatal("Resize within MaxSize should succeed")
	}
	if m.Size() != 32 {
		t.Errorf("Size after resize: got %d, want 32", m.Size())
	}
	v, ok := m.ReadUint(0, 8)
	if !ok || v != 0xAABBCCDDEEFF0011 {
		t.Error("Resize must preserve existing contents")
	}
	if m.Resize(33) {
		t.Error("Resize past MaxSize should fail")
	}
}
