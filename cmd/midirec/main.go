// Package main is the entry point for the midirec CLI
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	deviceIndex int
	baseName    string
	autoSeconds int
	verbose     bool
	listDevices bool
	tempoBPM    float64
	overwrite   bool
	logFilePath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midirec",
	Short: "The very simple MIDI recorder",
	Long: `midirec records a MIDI input port into Standard MIDI Files.

Recording starts with the first event and stops on Ctrl+C. In auto mode a
new file is started after the given number of seconds of silence, and every
file name carries the time its first event arrived.

Examples:
  midirec --list
  midirec -d 1 -n takes/piano
  midirec -d 1 -n jam --auto 10
  midirec inspect takes/piano.mid`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRecord,
}

var inspectCmd = &cobra.Command{
	Use:          "inspect <file.mid>",
	Short:        "Verify a recorded file and print its structure",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runInspect,
}

func init() {
	rootCmd.Flags().BoolVarP(&listDevices, "list", "l", false, "List available devices and exit")
	rootCmd.Flags().IntVarP(&deviceIndex, "device", "d", 0, "MIDI device to be opened by index")
	rootCmd.Flags().StringVarP(&baseName, "name", "n", "track", "Name of MIDI file(s) to be stored, can be a path")
	rootCmd.Flags().IntVarP(&autoSeconds, "auto", "a", 0, "Auto mode silence timeout in SECS after which a new track is recorded (0 = disabled)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every captured event")
	rootCmd.Flags().Float64Var(&tempoBPM, "tempo", 120, "Tempo in BPM used for the delta time conversion")
	rootCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files instead of choosing a free name")
	rootCmd.Flags().StringVar(&logFilePath, "log-file", "", "Append log output to this file instead of stderr")

	rootCmd.AddCommand(inspectCmd)
}
