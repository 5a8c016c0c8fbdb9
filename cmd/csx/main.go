// Command csx is the CSX64 toolchain driver: assemble, link, and run,
// exposed as one cobra command tree.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var logJSON bool

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if logJSON || !term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	root := &cobra.Command{
		Use:           "csx",
		Short:         "CSX64 assembler, linker, and virtual machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured logs as JSON instead of text")

	root.AddCommand(newAssembleCmd())
	root.AddCommand(newLinkCmd())
	runCmd := newRunCmd()
	root.AddCommand(runCmd)
	root.AddCommand(newDumpCmd())

	// Bare "csx [options] <pathspec>..." with no subcommand behaves like
	// "csx run [options] <pathspec>...".
	root.Flags().AddFlagSet(runCmd.Flags())
	root.Args = cobra.ArbitraryArgs
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runCmd.RunE(cmd, args)
	}

	if err := root.Execute(); err != nil {
		log := newLogger()
		log.Error(err.Error())
		os.Exit(exitCodeFor(err))
	}
}

