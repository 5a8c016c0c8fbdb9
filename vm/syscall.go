package vm

import (
	"os"

	"github.com/csx64/csx64/isa"
)

// Syscall numbers dispatched on RAX, following the host's native x86-64
// numbering for the subset CSX64 actually implements.
const (
	sysRead   = 0
	sysWrite  = 1
	sysOpen   = 2
	sysClose  = 3
	sysBrk    = 12
	sysRename = 82
	sysMkdir  = 83
	sysRmdir  = 84
	sysUnlink = 87
	sysExit   = 60
)

const (
	openCreate = 0x40
	openTrunc  = 0x200
)

// execSyscall dispatches on RAX, reading arguments from RDI/RSI/RDX/R10
// per the native calling convention, and returns the result in RAX (-1 on
// a failed call).
func (c *CPU) execSyscall() bool {
	switch c.R[isa.RAX] {
	case sysExit:
		c.halt(int64(c.R[isa.RDI]))
		return true
	case sysRead:
		return c.sysRead()
	case sysWrite:
		return c.sysWrite()
	case sysOpen:
		return c.sysOpen()
	case sysClose:
		return c.sysClose()
	case sysBrk:
		return c.sysBrk()
	case sysRename:
		return c.sysFSMutate(func(a, b string) error { return os.Rename(a, b) }, true)
	case sysUnlink:
		return c.sysFSMutate1(os.Remove)
	case sysMkdir:
		return c.sysFSMutate1(func(p string) error { return os.Mkdir(p, 0755) })
	case sysRmdir:
		return c.sysFSMutate1(os.Remove)
	}
	c.fail(UnhandledSyscall)
	return true
}

func (c *CPU) readCString(addr uint64, limit int) (string, bool) {
	var out []byte
	for i := 0; i < limit; i++ {
		b, ok := c.Mem.ReadBytes(addr+uint64(i), 1)
		if !ok {
			c.fail(OutOfBounds)
			return "", false
		}
		if b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return string(out), true
}

// sysRead is the only cooperative-blocking syscall: if the target
// descriptor is interactive and reports zero bytes, the handler rewinds
// RIP by the instruction length (the single `syscall` opcode byte) and
// signals the tick loop to stop, so the next tick retries the same call.
func (c *CPU) sysRead() bool {
	fd := int(c.R[isa.RDI])
	w, ok := c.FDs.Get(fd)
	if !ok {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FDNotInUse)
		return true
	}
	addr := c.R[isa.RSI]
	count := c.R[isa.RDX]
	buf := make([]byte, count)
	n, err := w.file.Read(buf)
	if n == 0 && w.interactive {
		c.RIP--
		return true
	}
	if err != nil && n == 0 {
		c.R[isa.RAX] = uint64(int64(-1))
		return false
	}
	if !c.Mem.WriteBytes(addr, buf[:n]) {
		c.fail(AccessViolation)
		return true
	}
	c.R[isa.RAX] = uint64(n)
	return false
}

func (c *CPU) sysWrite() bool {
	fd := int(c.R[isa.RDI])
	w, ok := c.FDs.Get(fd)
	if !ok {
		c.fail(FDNotInUse)
		return true
	}
	addr := c.R[isa.RSI]
	count := c.R[isa.RDX]
	data, ok := c.Mem.ReadBytes(addr, count)
	if !ok {
		c.fail(OutOfBounds)
		return true
	}
	n, err := w.file.Write(data)
	if err != nil {
		c.R[isa.RAX] = uint64(int64(-1))
		return false
	}
	c.R[isa.RAX] = uint64(n)
	return false
}

func (c *CPU) sysOpen() bool {
	name, ok := c.readCString(c.R[isa.RDI], 4096)
	if !ok {
		return true
	}
	flags := int(c.R[isa.RSI])
	if flags&(openCreate|openTrunc) != 0 && !c.FSF() {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FSDisabled)
		return true
	}
	fd, err := c.FDs.Open(name, flags, 0644)
	if err != nil {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(err.(RuntimeError))
		return true
	}
	c.R[isa.RAX] = uint64(fd)
	return false
}

func (c *CPU) sysClose() bool {
	fd := int(c.R[isa.RDI])
	if err := c.FDs.Close(fd); err != nil {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(err.(RuntimeError))
		return true
	}
	c.R[isa.RAX] = 0
	return false
}

func (c *CPU) sysBrk() bool {
	req := c.R[isa.RDI]
	if req == 0 {
		c.R[isa.RAX] = c.Mem.Size()
		return false
	}
	if !c.Mem.Resize(req) {
		c.R[isa.RAX] = uint64(int64(-1))
		return false
	}
	c.R[isa.RAX] = 0
	return false
}

func (c *CPU) sysFSMutate1(op func(path string) error) bool {
	if !c.FSF() {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FSDisabled)
		return true
	}
	name, ok := c.readCString(c.R[isa.RDI], 4096)
	if !ok {
		return true
	}
	full, ok := c.FDs.sanitizePath(name)
	if !ok {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FilePermissions)
		return true
	}
	if err := op(full); err != nil {
		c.R[isa.RAX] = uint64(int64(-1))
		return false
	}
	c.R[isa.RAX] = 0
	return false
}

func (c *CPU) sysFSMutate(op func(a, b string) error, twoNames bool) bool {
	_ = twoNames
	if !c.FSF() {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FSDisabled)
		return true
	}
	a, ok := c.readCString(c.R[isa.RDI], 4096)
	if !ok {
		return true
	}
	b, ok := c.readCString(c.R[isa.RSI], 4096)
	if !ok {
		return true
	}
	fullA, ok := c.FDs.sanitizePath(a)
	if !ok {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FilePermissions)
		return true
	}
	fullB, ok := c.FDs.sanitizePath(b)
	if !ok {
		c.R[isa.RAX] = uint64(int64(-1))
		c.fail(FilePermissions)
		return true
	}
	if err := op(fullA, fullB); err != nil {
		c.R[isa.RAX] = uint64(int64(-1))
		return false
	}
	c.R[isa.RAX] = 0
	return false
}
