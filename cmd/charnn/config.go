package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/options"
	"github.com/samcharles93/charnn/internal/snapshot"
)

const defaultOptionsPath = "options.yaml"

func optionsFileFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "options",
		Aliases:     []string{"o"},
		Usage:       "path to the training options file",
		Value:       defaultOptionsPath,
		Destination: dst,
	}
}

// resolveOptions layers the effective options: defaults, then the options
// stored in a resumed snapshot or the options file, then explicitly set
// flags. Out-of-range results fall back to defaults with a warning.
//
// A missing options file is only an error when --options was given.
func resolveOptions(c *cli.Command, path string, resume *snapshot.Snapshot, log logger.Logger) (options.Options, error) {
	base := options.Defaults()
	switch {
	case resume != nil && resume.Info.Options != nil && !c.IsSet("options"):
		base = *resume.Info.Options
		log.Debug("using options stored in snapshot")
	case path != "":
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) && !c.IsSet("options") {
			log.Debug("options file not found, using defaults", "path", path)
			break
		}
		loaded, err := options.Load(path, log)
		if err != nil {
			return base, err
		}
		base = loaded
	}
	return applyOptionOverrides(c, base).Sanitize(log), nil
}

// applyOptionOverrides applies option flags when they were explicitly set.
func applyOptionOverrides(c *cli.Command, o options.Options) options.Options {
	if c.IsSet("input") {
		o.InputFile = c.String("input")
	}
	if c.IsSet("hidden-size") {
		o.HiddenSize = int(c.Int64("hidden-size"))
	}
	if c.IsSet("layers") {
		o.Layers = int(c.Int64("layers"))
	}
	if c.IsSet("seq-length") {
		o.SequenceLength = int(c.Int64("seq-length"))
	}
	if c.IsSet("learning-rate") {
		o.LearningRate = c.Float64("learning-rate")
	}
	if c.IsSet("temperature") {
		o.SamplingTemp = c.Float64("temperature")
	}
	if c.IsSet("sample-length") {
		o.TrainingSampleLength = int(c.Int64("sample-length"))
	}
	if c.IsSet("sample-every") {
		o.SampleEveryNSteps = int(c.Int64("sample-every"))
	}
	if c.IsSet("snapshot-every") {
		o.SnapshotEveryNSamples = int(c.Int64("snapshot-every"))
	}
	if c.IsSet("loop") {
		o.LoopAroundTimes = int(c.Int64("loop"))
	}
	if c.IsSet("single-layer") {
		o.UseSingleLayerNet = c.Bool("single-layer")
	}
	if c.IsSet("print-options") {
		o.PrintOptions = c.Bool("print-options")
	}
	return o
}
