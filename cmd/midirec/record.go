package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/leandrodaf/midirec/internal/logger"
	"github.com/leandrodaf/midirec/internal/smffile"
	"github.com/leandrodaf/midirec/sdk/contracts"
	"github.com/leandrodaf/midirec/sdk/midi"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func runRecord(cmd *cobra.Command, args []string) error {
	if autoSeconds < 0 {
		return fmt.Errorf("--auto must not be negative, got %d", autoSeconds)
	}

	log := logger.NewZapLogger()
	defer log.Sync()

	level := contracts.InfoLevel
	if verbose {
		level = contracts.DebugLevel
	}
	clock := contracts.NewMonotonicClock()

	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(level),
		contracts.WithLogFile(logFilePath),
		contracts.WithClock(clock),
	)
	if err != nil {
		return err
	}
	defer client.Stop()

	if listDevices {
		return printDevices(cmd.OutOrStdout(), client)
	}

	rec, err := midi.NewRecorder(
		contracts.WithRecorderLogger(log),
		contracts.WithRecorderClock(clock),
		contracts.WithBaseName(baseName),
		contracts.WithSilenceTimeout(time.Duration(autoSeconds)*time.Second),
		contracts.WithTempo(tempoBPM),
		contracts.WithOverwrite(overwrite),
	)
	if err != nil {
		return err
	}

	if err := client.SelectDevice(deviceIndex); err != nil {
		return err
	}

	err = rec.Record(cmd.Context(), client)
	reportUnsaved(cmd.ErrOrStderr(), err)
	return err
}

func printDevices(w io.Writer, client contracts.ClientMIDI) error {
	devices, err := client.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Fprintln(w, d)
	}
	return nil
}

// reportUnsaved lists takes whose file could not be written.
func reportUnsaved(w io.Writer, err error) {
	for _, e := range multierr.Errors(err) {
		var werr *smffile.WriteError
		if !errors.As(e, &werr) {
			continue
		}
		fmt.Fprintf(w, "not saved: take started %s with %d events (%s)\n",
			werr.Take.StartedAt.Format(time.DateTime), len(werr.Take.Events), werr.Path)
	}
}
