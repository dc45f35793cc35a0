package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/logger"
)

var (
	logLevel  string
	logFormat string
	debug     bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// setupLogging installs the logger selected by the global flags on ctx.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := logLevel
	if debug {
		level = "debug"
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	log, err := logger.Open(logFormat, os.Stderr, lvl)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return logger.WithContext(ctx, log), nil
}

func snapshotFlag(dst *string, required bool) cli.Flag {
	return &cli.StringFlag{
		Name:        "snapshot",
		Aliases:     []string{"s"},
		Usage:       "path to a snapshot-<step>.ckpt file",
		Destination: dst,
		Required:    required,
	}
}

// optionFlags override individual keys of the options file.
func optionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "training text (inputFile)"},
		&cli.Int64Flag{Name: "hidden-size", Usage: "hidden units per layer (hiddenSize)"},
		&cli.Int64Flag{Name: "layers", Usage: "stacked layers (layers)"},
		&cli.Int64Flag{Name: "seq-length", Usage: "training window length (sequenceLength)"},
		&cli.Float64Flag{Name: "learning-rate", Aliases: []string{"lr"}, Usage: "Adagrad learning rate (learningRate)"},
		&cli.Float64Flag{Name: "temperature", Aliases: []string{"temp", "t"}, Usage: "training sample temperature (samplingTemp)"},
		&cli.Int64Flag{Name: "sample-length", Usage: "training sample length (trainingSampleLength)"},
		&cli.Int64Flag{Name: "sample-every", Usage: "steps between samples (sampleEveryNSteps)"},
		&cli.Int64Flag{Name: "snapshot-every", Usage: "samples between snapshots (snapshotEveryNSamples)"},
		&cli.Int64Flag{Name: "loop", Usage: "extra passes over the corpus (loopAroundTimes)"},
		&cli.BoolFlag{Name: "single-layer", Usage: "use the single layer network (useSingleLayerNet)"},
		&cli.BoolFlag{Name: "print-options", Usage: "print effective options before training (printOptions)"},
	}
}
