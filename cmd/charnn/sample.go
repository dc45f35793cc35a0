package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/logits"
	"github.com/samcharles93/charnn/internal/rnn"
	"github.com/samcharles93/charnn/internal/snapshot"
)

func sampleCmd() *cli.Command {
	var (
		snapshotPath string
		prime        string
		length       int64
		temp         float64
		advance      bool
		count        int64
		rngSeed      int64
		echoPrime    bool
	)

	return &cli.Command{
		Name:  "sample",
		Usage: "Sample text from a snapshot",
		Flags: []cli.Flag{
			snapshotFlag(&snapshotPath, true),
			&cli.StringFlag{
				Name:        "prime",
				Aliases:     []string{"p"},
				Usage:       "seed text fed before sampling",
				Destination: &prime,
				Required:    true,
			},
			&cli.Int64Flag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "characters to sample",
				Value:       400,
				Destination: &length,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"temp", "t"},
				Usage:       "sampling temperature in (0, 1] (defaults to the snapshot's samplingTemp)",
				Destination: &temp,
			},
			&cli.BoolFlag{
				Name:        "advance",
				Usage:       "keep the hidden state between samples",
				Destination: &advance,
			},
			&cli.Int64Flag{
				Name:        "count",
				Usage:       "number of samples to draw",
				Value:       1,
				Destination: &count,
			},
			&cli.Int64Flag{
				Name:        "rng-seed",
				Usage:       "random seed (-1 = time based)",
				Value:       -1,
				Destination: &rngSeed,
			},
			&cli.BoolFlag{
				Name:        "echo-prime",
				Usage:       "print the seed text before each sample",
				Destination: &echoPrime,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			if length < 1 {
				return cli.Exit("error: --length must be at least 1", 1)
			}

			snap, err := snapshot.Load(snapshotPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if !cmd.IsSet("temperature") {
				temp = 1
				if snap.Info.Options != nil {
					temp = snap.Info.Options.SamplingTemp
				}
			}
			if !logits.ValidTemperature(temp) {
				return cli.Exit(fmt.Sprintf("error: temperature %g outside (0, 1]", temp), 1)
			}
			char, err := rnn.NewCharNet(snap.Network, snap.Alphabet)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if rngSeed < 0 {
				rngSeed = time.Now().UnixNano()
			}
			log.Debug("sampling", "snapshot", snapshotPath, "temperature", temp, "rng_seed", rngSeed)

			s := logits.NewSampler(rngSeed)
			for i := int64(0); i < count; i++ {
				text, err := char.SampleString(s, int(length), prime, temp, advance)
				if err != nil {
					var member *corpus.MembershipError
					if errors.As(err, &member) {
						return cli.Exit(fmt.Sprintf("error: seed text: %v", err), 1)
					}
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				if echoPrime {
					text = prime + text
				}
				if _, err := fmt.Fprintln(os.Stdout, text); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
