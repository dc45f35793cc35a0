package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/journal"
)

func runsCmd() *cli.Command {
	var (
		journalPath string
		runID       string
		every       int64
		samples     bool
	)

	return &cli.Command{
		Name:  "runs",
		Usage: "List training runs recorded in a journal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "journal",
				Usage:       "sqlite journal written by train --journal",
				Destination: &journalPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "run",
				Usage:       "show the loss history, samples and snapshots of one run",
				Destination: &runID,
			},
			&cli.Int64Flag{
				Name:        "every",
				Usage:       "print every Nth loss point",
				Value:       100,
				Destination: &every,
			},
			&cli.BoolFlag{Name: "samples", Usage: "print sampled text", Destination: &samples},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			j, err := journal.Open(journalPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = j.Close() }()

			if runID == "" {
				runs, err := j.Runs(ctx)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTARTED\tCORPUS\tHIDDEN\tLAYERS\tSEQ")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
						r.Corpus, r.Options.HiddenSize, r.Options.Layers, r.Options.SequenceLength)
				}
				return tw.Flush()
			}

			losses, err := j.Losses(ctx, runID)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if every < 1 {
				every = 1
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tLOSS\tSMOOTH")
			for i, p := range losses {
				if int64(i)%every != 0 && i != len(losses)-1 {
					continue
				}
				fmt.Fprintf(tw, "%d\t%.4f\t%.4f\n", p.Step, p.Loss, p.SmoothLoss)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			snaps, err := j.Snapshots(ctx, runID)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(snaps) > 0 {
				fmt.Println()
				for _, s := range snaps {
					fmt.Printf("snapshot step %d: %s\n", s.Step, s.Path)
				}
			}

			if samples {
				drawn, err := j.Samples(ctx, runID)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				for _, s := range drawn {
					fmt.Printf("\n---- step %d\n%s\n", s.Step, s.Text)
				}
			}
			return nil
		},
	}
}
