package main

import (
	"os"

	"github.com/csx64/csx64/link"
	"github.com/csx64/csx64/obj"
	"github.com/spf13/cobra"
)

var (
	linkOut     string
	linkEntry   string
	linkRootDir string
)

// newLinkCmd builds the "link" subcommand: merge object files (assembling
// any bare .asm sources first) into one executable.
func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <pathspec>...",
		Short: "Link object files (or sources) into an executable",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLink,
	}
	cmd.Flags().StringVarP(&linkOut, "out", "o", "a.out", "output executable path")
	cmd.Flags().StringVar(&linkEntry, "entry", "", "entry symbol name (default \"main\")")
	cmd.Flags().StringVar(&linkRootDir, "rootdir", ".", "install directory for the _start bootstrap module")
	return cmd
}

func runLink(cmd *cobra.Command, args []string) error {
	log := newLogger()
	files, err := buildObjects(args, linkRootDir)
	if err != nil {
		return err
	}
	exe, err := link.Link(files, linkEntry)
	if err != nil {
		return err
	}
	if err := writeExecutable(linkOut, exe); err != nil {
		return err
	}
	log.Info("linked", "out", linkOut, "entry", entryOrDefault(linkEntry), "inputs", len(files))
	return nil
}

func entryOrDefault(e string) string {
	if e == "" {
		return "main"
	}
	return e
}

func writeExecutable(path string, exe *obj.Executable) error {
	w, err := os.Create(path)
	if err != nil {
		return &ioError{err}
	}
	defer w.Close()
	if err := exe.Write(w); err != nil {
		return &ioError{err}
	}
	return nil
}
