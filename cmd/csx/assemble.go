package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/csx64/csx64/obj"
	"github.com/spf13/cobra"
)

var (
	assembleOut     string
	assembleListing bool
)

// newAssembleCmd builds the "assemble" subcommand: translate one or more
// source files into object files, independently.
func newAssembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble <pathspec>...",
		Short: "Assemble source files into object files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAssemble,
	}
	cmd.Flags().StringVarP(&assembleOut, "out", "o", "", "output path (single-input only; defaults to replacing the extension with .o)")
	cmd.Flags().BoolVar(&assembleListing, "listing", false, "print an address/bytes/source listing for each input")
	return cmd
}

func runAssemble(cmd *cobra.Command, args []string) error {
	log := newLogger()
	if assembleOut != "" && len(args) != 1 {
		return fmt.Errorf("-o/--out only applies to a single input file")
	}
	files, err := assembleAll(args)
	if err != nil {
		return err
	}
	for i, f := range files {
		out := assembleOut
		if out == "" {
			out = strings.TrimSuffix(args[i], filepath.Ext(args[i])) + ".o"
		}
		w, err := os.Create(out)
		if err != nil {
			return &ioError{err}
		}
		err = f.Write(w)
		w.Close()
		if err != nil {
			return &ioError{err}
		}
		log.Info("assembled", "source", args[i], "out", out)
		if assembleListing {
			printListing(args[i], f)
		}
	}
	return nil
}

// printListing renders a minimal per-segment address/bytes table, in the
// spirit of a traditional assembler's -l output.
func printListing(name string, f *obj.File) {
	fmt.Printf("; %s\n", name)
	for _, seg := range []struct {
		name string
		data []byte
	}{
		{".text", f.Text}, {".rodata", f.Rodata}, {".data", f.Data},
	} {
		if len(seg.data) == 0 {
			continue
		}
		fmt.Printf("%-8s %5d bytes\n", seg.name, len(seg.data))
		for addr := 0; addr < len(seg.data); addr += 16 {
			end := addr + 16
			if end > len(seg.data) {
				end = len(seg.data)
			}
			fmt.Printf("  %04x: % x\n", addr, seg.data[addr:end])
		}
	}
	if f.BssLen > 0 {
		fmt.Printf(".bss      %5d bytes (uninitialized)\n", f.BssLen)
	}
}
