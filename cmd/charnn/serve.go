package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/api"
	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/rnn"
	"github.com/samcharles93/charnn/internal/snapshot"
	"github.com/samcharles93/charnn/internal/version"
	"github.com/samcharles93/charnn/internal/webui"
)

func serveCmd() *cli.Command {
	var (
		snapshotPath string
		addr         string
		readTimeout  time.Duration
		maxLength    int64
		keep         int64
		noUI         bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sampling API for a snapshot",
		Flags: []cli.Flag{
			snapshotFlag(&snapshotPath, true),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "max-length",
				Usage:       "largest sample length a request may ask for",
				Value:       api.DefaultMaxLength,
				Destination: &maxLength,
			},
			&cli.Int64Flag{
				Name:        "keep",
				Usage:       "recent samples retained for GET /v1/samples",
				Value:       api.DefaultStoreCapacity,
				Destination: &keep,
			},
			&cli.BoolFlag{
				Name:        "no-ui",
				Usage:       "do not serve the sampling page at /",
				Destination: &noUI,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			snap, err := snapshot.Load(snapshotPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			char, err := rnn.NewCharNet(snap.Network, snap.Alphabet)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg := api.Config{
				Net:       char,
				Run:       &snap.Info,
				MaxLength: int(maxLength),
				Version:   version.String(),
				Store:     api.NewSampleStore(int(keep)),
			}
			if !noUI {
				cfg.UI = webui.Index()
			}
			if snap.Info.Options != nil {
				cfg.DefaultTemperature = snap.Info.Options.SamplingTemp
			}
			server := api.NewServer(cfg)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "snapshot", snapshotPath, "run", snap.Info.RunID)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
