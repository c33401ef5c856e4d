package main

import (
	"fmt"
	"io"
	"os"

	"github.com/leandrodaf/midirec/internal/smffile"
	"github.com/spf13/cobra"
)

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	s, err := smffile.Summarize(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	printSummary(cmd.OutOrStdout(), args[0], s)
	return nil
}

func printSummary(w io.Writer, path string, s *smffile.Summary) {
	fmt.Fprintf(w, "file:       %s\n", path)
	fmt.Fprintf(w, "format:     %d\n", s.Layout.Format)
	fmt.Fprintf(w, "tracks:     %d\n", s.Layout.Tracks)
	fmt.Fprintf(w, "resolution: %d ticks per quarter\n", s.Resolution)
	fmt.Fprintf(w, "tempo:      %.2f BPM\n", s.TempoBPM)
	fmt.Fprintf(w, "events:     %d\n", s.Events)
	fmt.Fprintf(w, "length:     %s (%d ticks)\n", s.Length, s.Ticks)
}
