package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/options"
)

func optionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "options",
		Usage: "Create or show training options files",
		Commands: []*cli.Command{
			optionsInitCmd(),
			optionsShowCmd(),
		},
	}
}

func optionsInitCmd() *cli.Command {
	var (
		path  string
		force bool
	)
	return &cli.Command{
		Name:  "init",
		Usage: "Write the default options file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Usage:       "file to write",
				Value:       defaultOptionsPath,
				Destination: &path,
			},
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file", Destination: &force},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := os.Stat(path); err == nil && !force {
				return cli.Exit(fmt.Sprintf("error: %s already exists (use --force to overwrite)", path), 1)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := options.Defaults().Save(path); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			logger.FromContext(ctx).Info("options written", "path", path)
			return nil
		},
	}
}

func optionsShowCmd() *cli.Command {
	var (
		path   string
		asYAML bool
	)
	return &cli.Command{
		Name:  "show",
		Usage: "Print the effective options after file and flag overrides",
		Flags: append([]cli.Flag{
			optionsFileFlag(&path),
			&cli.BoolFlag{Name: "yaml", Usage: "print as an options file", Destination: &asYAML},
		}, optionFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := resolveOptions(cmd, path, nil, logger.FromContext(ctx))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if asYAML {
				data, err := opts.Marshal()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}
			return opts.Print(os.Stdout)
		},
	}
}
