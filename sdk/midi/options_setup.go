package midi

import (
	"github.com/leandrodaf/midirec/internal/logger"
	"github.com/leandrodaf/midirec/sdk/contracts"
)

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.CoreMIDIConfig == nil {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: "midirec"}
	}
	if options.Clock == nil {
		options.Clock = contracts.NewMonotonicClock()
	}

	// InfoLevel is the zero value, so an unset level means Info.
	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}

// applyRecordDefaults sets default values for RecordOptions if not explicitly provided.
func applyRecordDefaults(opts ...contracts.RecordOption) contracts.RecordOptions {
	options := contracts.RecordOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.Clock == nil {
		options.Clock = contracts.NewMonotonicClock()
	}
	if options.BaseName == "" {
		options.BaseName = DefaultBaseName
	}
	if options.TempoBPM == 0 {
		options.TempoBPM = DefaultTempoBPM
	}
	return options
}
