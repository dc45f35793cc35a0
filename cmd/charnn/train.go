package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/journal"
	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/snapshot"
	"github.com/samcharles93/charnn/internal/trainer"
)

func trainCmd() *cli.Command {
	var (
		optionsPath string
		snapshotDir string
		resume      string
		journalPath string
		seed        int64
		maxSteps    int64
		progress    time.Duration
		quiet       bool

		cpuProfile string
		memProfile string
	)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a network on a text corpus",
		Flags: append([]cli.Flag{
			optionsFileFlag(&optionsPath),
			&cli.StringFlag{
				Name:        "snapshot-dir",
				Usage:       "directory for snapshot files (empty disables snapshots)",
				Value:       "snapshots",
				Destination: &snapshotDir,
			},
			&cli.StringFlag{
				Name:        "resume",
				Usage:       "snapshot to resume from, or \"latest\" for the newest in --snapshot-dir",
				Destination: &resume,
			},
			&cli.StringFlag{
				Name:        "journal",
				Usage:       "sqlite journal recording loss, samples and snapshots",
				Destination: &journalPath,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "seed for weight initialisation and sampling",
				Value:       1,
				Destination: &seed,
			},
			&cli.Int64Flag{
				Name:        "max-steps",
				Usage:       "stop after this many windows (0 = run every loop)",
				Destination: &maxSteps,
			},
			&cli.DurationFlag{
				Name:        "progress-every",
				Usage:       "minimum interval between progress log lines",
				Value:       2 * time.Second,
				Destination: &progress,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Aliases:     []string{"q"},
				Usage:       "do not print training samples",
				Destination: &quiet,
			},
			&cli.StringFlag{Name: "cpu-profile", Usage: "write CPU profile to file", Destination: &cpuProfile},
			&cli.StringFlag{Name: "mem-profile", Usage: "write memory profile to file", Destination: &memProfile},
		}, optionFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return cli.Exit(fmt.Sprintf("could not create CPU profile: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				if err := pprof.StartCPUProfile(f); err != nil {
					return cli.Exit(fmt.Sprintf("could not start CPU profile: %v", err), 1)
				}
				defer pprof.StopCPUProfile()
			}
			if memProfile != "" {
				defer func() {
					f, err := os.Create(memProfile)
					if err != nil {
						fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
						return
					}
					defer func() { _ = f.Close() }()
					if err := pprof.WriteHeapProfile(f); err != nil {
						fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
					}
				}()
			}

			var snap *snapshot.Snapshot
			if resume != "" {
				path := resume
				if resume == "latest" {
					latest, err := snapshot.Latest(snapshotDir)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: resume: %v", err), 1)
					}
					path = latest
				}
				s, err := snapshot.Load(path)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: resume: %v", err), 1)
				}
				log.Info("resuming", "snapshot", path, "run", s.Info.RunID, "step", s.Info.Step)
				snap = s
			}

			opts, err := resolveOptions(cmd, optionsPath, snap, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			var text *corpus.Corpus
			if snap != nil {
				text, err = loadCorpusWith(opts.InputFile, snap.Alphabet)
			} else {
				text, err = corpus.Load(opts.InputFile)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("corpus loaded", "path", opts.InputFile, "symbols", text.Len(), "alphabet", text.Alphabet.Size())

			if snapshotDir != "" {
				if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
					return cli.Exit(fmt.Sprintf("error: create snapshot dir: %v", err), 1)
				}
			}

			cfg := trainer.Config{
				Options:       opts,
				Corpus:        text,
				CorpusName:    opts.InputFile,
				Resume:        snap,
				Seed:          seed,
				SnapshotDir:   snapshotDir,
				Samples:       os.Stdout,
				Logger:        log,
				MaxSteps:      int(maxSteps),
				ProgressEvery: progress,
			}
			if quiet {
				cfg.Samples = nil
			}
			if journalPath != "" {
				j, err := journal.Open(journalPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer func() { _ = j.Close() }()
				cfg.Recorder = trainer.JournalRecorder{J: j}
			}

			t, err := trainer.New(cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if opts := t.Options(); opts.PrintOptions {
				if err := opts.Print(os.Stdout); err != nil {
					return err
				}
			}
			res, err := t.Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Warn("training interrupted", "step", res.Steps)
				return nil
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: train: %v", err), 1)
			}
			return nil
		},
	}
}

func loadCorpusWith(path string, alpha *corpus.Alphabet) (*corpus.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	c, err := corpus.WithAlphabet(string(data), alpha)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", path, err)
	}
	return c, nil
}
