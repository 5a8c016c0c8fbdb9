// Package vm implements the CSX64 virtual CPU: a fetch-decode-dispatch
// interpreter over the object/link packages' executable format, sharing
// its instruction encoding with the assembler via the isa package.
package vm

import (
	"fmt"
	"math/rand"

	"github.com/csx64/csx64/isa"
	"github.com/csx64/csx64/obj"
)

const defaultStackSize = 2 * 1024 * 1024

// IOHooks lets a host plumb IN/OUT port instructions to whatever backs
// them; both hooks take a 64-bit datum regardless of the requested size so
// the caller can mask as needed.
type IOHooks struct {
	In  func(port uint16, size isa.SizeCode) uint64
	Out func(port uint16, size isa.SizeCode, val uint64)
}

// CPU is the full virtual machine state: registers, flags, memory, FPU,
// vector unit, file descriptors, and the bookkeeping the spec calls
// "termination status carried on the CPU state itself".
type CPU struct {
	R      [16]uint64 // general registers, indexed by isa.Register
	RIP    uint64
	RFLAGS uint64

	Mem *Memory
	FPU FPU
	VPU VPU
	FDs *FDTable

	IO IOHooks

	Running     bool
	Error       RuntimeError
	ReturnValue int64

	// StrictUB selects whether an out-of-band operand encoding (e.g.
	// high=1 with size != byte) is reported as UndefinedBehavior or
	// silently tolerated.
	StrictUB bool

	rng *rand.Rand

	dispatch [256]func(*CPU) bool
}

// NewCPU constructs a CPU with its dispatch table wired and FPU/VPU reset,
// ready for Init. seed drives the session PRNG used to scramble
// uninitialized state and to fill flags Intel leaves undefined.
func NewCPU(seed int64, io IOHooks) *CPU {
	c := &CPU{rng: rand.New(rand.NewSource(seed)), IO: io}
	c.FPU.Init()
	c.VPU.Init()
	c.initDispatch()
	return c
}

// ExecErrorReturnCode is the CLI-visible return value used when execution
// terminates via a runtime error rather than sys_exit/HLT.
const ExecErrorReturnCode = -1

// Init loads exe into a fresh memory image, lays out argv on the stack,
// and sets the CPU to its entry state, per the specification's
// initialization algorithm.
func (c *CPU) Init(exe *obj.Executable, argv []string, maxMemory uint64) error {
	total := exe.TextLen + exe.RodataLen + exe.DataLen + exe.BssLen + defaultStackSize
	if maxMemory != 0 && total > maxMemory {
		return fmt.Errorf("vm: required memory %d exceeds configured maximum %d", total, maxMemory)
	}
	c.Mem = NewMemory(total, maxMemory)
	copy(c.Mem.RawView(), exe.Content)

	c.Mem.ExeBarrier = exe.TextLen
	c.Mem.ReadonlyBarrier = exe.TextLen + exe.RodataLen
	c.Mem.StackBarrier = exe.TextLen + exe.RodataLen + exe.DataLen + exe.BssLen

	for i := range c.R {
		c.R[i] = c.rng.Uint64()
	}
	for i := range c.VPU.regs {
		c.rng.Read(c.VPU.regs[i][:])
	}
	c.FPU.Init()

	c.FDs = NewFDTable(".")
	c.Running = true
	c.Error = NoError
	c.ReturnValue = 0

	sp := uint64(len(c.Mem.RawView()))
	argPtrs := make([]uint64, len(argv))
	for i, a := range argv {
		b := append([]byte(a), 0)
		sp -= uint64(len(b))
		copy(c.Mem.RawView()[sp:sp+uint64(len(b))], b)
		argPtrs[i] = sp
	}
	// Null-terminated pointer array.
	sp -= 8
	binaryPutUint64(c.Mem.RawView(), sp, 0)
	for i := len(argPtrs) - 1; i >= 0; i-- {
		sp -= 8
		binaryPutUint64(c.Mem.RawView(), sp, argPtrs[i])
	}
	argvPtr := sp
	sp &^= 0xF // 16-byte stack alignment before the conventional frame

	c.R[isa.RSP] = sp
	c.R[isa.RDI] = uint64(len(argv))
	c.R[isa.RSI] = argvPtr
	if !c.push(c.R[isa.RSI]) {
		return fmt.Errorf("vm: stack too small for argv layout")
	}
	if !c.push(c.R[isa.RDI]) {
		return fmt.Errorf("vm: stack too small for argv layout")
	}

	c.RIP = 0
	c.RFLAGS = 2
	return nil
}

func binaryPutUint64(mem []byte, addr, v uint64) {
	for i := 0; i < 8; i++ {
		mem[addr+uint64(i)] = byte(v >> (8 * i))
	}
}

// Tick executes up to n instructions, stopping early on termination, an
// error, or a cooperative-yield instruction (e.g. a blocking interactive
// read). It returns the number of instructions actually executed.
func (c *CPU) Tick(n int) int {
	executed := 0
	for ; executed < n; executed++ {
		if !c.Running {
			break
		}
		if !c.Mem.CheckExecute(c.RIP) {
			c.fail(AccessViolation)
			break
		}
		op, ok := c.Mem.ReadBytes(c.RIP, 1)
		if !ok {
			c.fail(OutOfBounds)
			break
		}
		info, ok := isa.LookupOpcode(op[0])
		if !ok {
			c.fail(UnknownOp)
			break
		}
		c.RIP++
		stop := c.dispatch[info.Opcode](c)
		if stop {
			executed++
			break
		}
	}
	return executed
}

// fail records a runtime error and stops execution, closing file
// descriptors, matching every error path's required side effect.
func (c *CPU) fail(e RuntimeError) {
	c.Error = e
	c.Running = false
	c.ReturnValue = ExecErrorReturnCode
	if c.FDs != nil {
		c.FDs.CloseAll()
	}
}

// halt stops execution normally with the given return value (HLT or
// sys_exit), also closing file descriptors.
func (c *CPU) halt(ret int64) {
	c.Running = false
	c.ReturnValue = ret
	if c.FDs != nil {
		c.FDs.CloseAll()
	}
}

// Terminate lets a host cancel execution out-of-band, per the concurrency
// model's "terminate_ok/terminate_err" escape hatches.
func (c *CPU) Terminate(ok bool, ret int64) {
	if ok {
		c.halt(ret)
	} else {
		c.fail(Abort)
	}
}
