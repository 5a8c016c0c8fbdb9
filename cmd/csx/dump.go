package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/csx64/csx64/obj"
	"github.com/spf13/cobra"
)

// newDumpCmd builds the "dump" subcommand: read-only introspection of an
// object or executable file's header and symbol table.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <path>",
		Short: "Print an object or executable file's header and symbols",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return &ioError{err}
	}
	defer f.Close()

	if strings.HasSuffix(path, ".o") || strings.HasSuffix(path, ".obj") {
		return dumpObject(path)
	}
	if exe, err := obj.ReadExecutable(f); err == nil {
		dumpExecutable(path, exe)
		return nil
	}
	return dumpObject(path)
}

func dumpObject(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &ioError{err}
	}
	defer f.Close()
	of, err := obj.ReadFile(f)
	if err != nil {
		return &ioError{err}
	}

	fmt.Printf("%s: object file\n", path)
	fmt.Printf("  .text   %6d bytes (align %d)\n", len(of.Text), of.TextAlign)
	fmt.Printf("  .rodata %6d bytes (align %d)\n", len(of.Rodata), of.RodataAlign)
	fmt.Printf("  .data   %6d bytes (align %d)\n", len(of.Data), of.DataAlign)
	fmt.Printf("  .bss    %6d bytes (align %d)\n", of.BssLen, of.BssAlign)

	fmt.Println("  globals:")
	for _, name := range sortedSymbolKeys(of.Global) {
		fmt.Printf("    %s\n", name)
	}
	fmt.Println("  externals:")
	for _, name := range sortedSymbolKeys(of.External) {
		fmt.Printf("    %s\n", name)
	}
	fmt.Println("  symbols:")
	for _, name := range sortedSymbolKeys(of.Symbols) {
		fmt.Printf("    %s\n", name)
	}
	for seg, holes := range of.Holes {
		if len(holes) == 0 {
			continue
		}
		fmt.Printf("  unresolved holes in segment %d: %d\n", seg, len(holes))
	}
	return nil
}

func dumpExecutable(path string, exe *obj.Executable) {
	fmt.Printf("%s: executable\n", path)
	fmt.Printf("  .text   %6d bytes\n", exe.TextLen)
	fmt.Printf("  .rodata %6d bytes\n", exe.RodataLen)
	fmt.Printf("  .data   %6d bytes\n", exe.DataLen)
	fmt.Printf("  .bss    %6d bytes\n", exe.BssLen)
	fmt.Printf("  total content %d bytes\n", len(exe.Content))
}

func sortedSymbolKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
