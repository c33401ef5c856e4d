package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/midirec/internal/logger"
	"github.com/leandrodaf/midirec/sdk/contracts"
	"github.com/leandrodaf/midirec/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()
	defer log.Sync()
	clock := contracts.NewMonotonicClock()

	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithClock(clock),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff, contracts.ControlChange},
		}),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}
	defer client.Stop()

	devices, err := client.ListDevices()
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI devices found or error listing devices", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI devices:", devices)

	if err = client.SelectDevice(0); err != nil {
		log.Error("Failed to select MIDI device", log.Field().Error("error", err))
		return
	}

	recorder, err := midi.NewRecorder(
		contracts.WithRecorderLogger(log),
		contracts.WithRecorderClock(clock),
		contracts.WithBaseName("example"),
		contracts.WithSilenceTimeout(5*time.Second),
	)
	if err != nil {
		log.Error("Failed to create recorder", log.Field().Error("error", err))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Recording... a new file starts after 5s of silence. Press Ctrl+C to exit.")
	if err := recorder.Record(ctx, client); err != nil {
		log.Error("Recording finished with errors", log.Field().Error("error", err))
	}
}
