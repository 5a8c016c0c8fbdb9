package main

import (
	"os"
	"time"

	"github.com/csx64/csx64/link"
	"github.com/csx64/csx64/obj"
	"github.com/csx64/csx64/vm"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	runEntry     string
	runRootDir   string
	runFS        bool
	runShowTime  bool
	runMaxMemory uint64
)

const ticksPerBatch = 1 << 16

// newRunCmd builds the "run" subcommand (also the root command's default
// behavior): assemble/link as needed, then execute to completion.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pathspec>...",
		Short: "Assemble, link, and execute a program",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRun,
	}
	cmd.Flags().StringVar(&runEntry, "entry", "", "entry symbol name (default \"main\")")
	cmd.Flags().StringVar(&runRootDir, "rootdir", ".", "install directory for the _start bootstrap module")
	cmd.Flags().BoolVar(&runFS, "fs", false, "enable filesystem mutation (FSF) at startup")
	cmd.Flags().BoolVar(&runShowTime, "time", false, "print elapsed wall time after execution")
	cmd.Flags().Uint64Var(&runMaxMemory, "max-memory", 0, "cap on total guest memory in bytes (0 = unbounded)")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	exe, guestArgs, err := resolveExecutable(args)
	if err != nil {
		return err
	}

	cpu := vm.NewCPU(time.Now().UnixNano(), vm.IOHooks{})
	if err := cpu.Init(exe, guestArgs, runMaxMemory); err != nil {
		return &ioError{err}
	}
	cpu.SetFSF(runFS)

	restoreTTY := enterRawMode()

	start := time.Now()
	for cpu.Running {
		cpu.Tick(ticksPerBatch)
	}
	elapsed := time.Since(start)
	restoreTTY()

	if runShowTime {
		newLogger().Info("execution finished", "elapsed", elapsed)
	}
	if cpu.Error != vm.NoError {
		return cpu.Error
	}
	os.Exit(int(cpu.ReturnValue))
	return nil
}

// resolveExecutable treats a lone non-.asm pathspec that reads as a valid
// executable as an already-linked image and everything else as
// assemble+link inputs, splitting off any
// arguments after "--" as the guest program's own argv.
func resolveExecutable(args []string) (*obj.Executable, []string, error) {
	split := len(args)
	for i, a := range args {
		if a == "--" {
			split = i
			break
		}
	}
	inputs, guestArgs := args[:split], args[split:]
	if len(guestArgs) > 0 {
		guestArgs = guestArgs[1:]
	}

	if len(inputs) == 1 && !isSourceFile(inputs[0]) {
		if exe, err := loadExecutableFile(inputs[0]); err == nil {
			return exe, guestArgs, nil
		}
	}

	files, err := buildObjects(inputs, runRootDir)
	if err != nil {
		return nil, nil, err
	}
	exe, err := link.Link(files, runEntry)
	if err != nil {
		return nil, nil, err
	}
	return exe, guestArgs, nil
}

func loadExecutableFile(path string) (*obj.Executable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return obj.ReadExecutable(f)
}

// enterRawMode puts stdin into raw mode when it is an interactive
// terminal, so a guest program reading and echoing keystrokes itself
// isn't double-buffered by the host tty's own line discipline. It
// returns a restore function that is always safe to call.
func enterRawMode() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(fd, state) }
}
