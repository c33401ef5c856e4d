package midi

import (
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/midirec/internal/logger"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

func TestNewClientForUnsupportedOS(t *testing.T) {
	options, err := applyDefaultOptions(contracts.WithLogger(logger.NewNopLogger()))
	if err != nil {
		t.Fatalf("applyDefaultOptions() error = %v", err)
	}

	_, err = newClientFor("plan9", &options)
	if !errors.Is(err, ErrUnsupportedOS) {
		t.Errorf("error = %v, want ErrUnsupportedOS", err)
	}
	if !errors.Is(err, contracts.ErrDevice) {
		t.Errorf("error = %v, want ErrDevice", err)
	}
}

func TestApplyDefaultOptions(t *testing.T) {
	options, err := applyDefaultOptions(contracts.WithLogger(logger.NewNopLogger()))
	if err != nil {
		t.Fatalf("applyDefaultOptions() error = %v", err)
	}
	if options.Clock == nil {
		t.Error("Clock was not defaulted")
	}
	if options.CoreMIDIConfig == nil || options.CoreMIDIConfig.ClientName == "" {
		t.Error("CoreMIDI client name was not defaulted")
	}
	if options.LogLevel != contracts.InfoLevel {
		t.Errorf("LogLevel = %v, want InfoLevel", options.LogLevel)
	}
	if !options.MIDIEventFilter.Allows(0x90) {
		t.Error("a missing filter must allow every channel message")
	}
}

func TestApplyDefaultOptionsKeepsClock(t *testing.T) {
	var calls int
	clock := func() time.Duration { calls++; return 0 }

	options, _ := applyDefaultOptions(
		contracts.WithLogger(logger.NewNopLogger()),
		contracts.WithClock(clock),
	)
	options.Clock()
	if calls != 1 {
		t.Error("the configured clock was replaced")
	}
}
