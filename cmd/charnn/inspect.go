package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/charnn/internal/snapshot"
	"github.com/samcharles93/charnn/pkg/ckpt"
)

func inspectCmd() *cli.Command {
	var (
		snapshotPath string
		showAll      bool
		showSections bool
		showTensors  bool
		showStats    bool
		showAlphabet bool
		showInfo     bool
		tensorFilter string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a snapshot file",
		Flags: []cli.Flag{
			snapshotFlag(&snapshotPath, true),
			&cli.BoolFlag{Name: "all", Usage: "show everything", Destination: &showAll},
			&cli.BoolFlag{Name: "sections", Usage: "show section directory", Destination: &showSections},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor index", Destination: &showTensors},
			&cli.BoolFlag{Name: "stats", Usage: "print min/max/mean/norm per tensor", Destination: &showStats},
			&cli.BoolFlag{Name: "alphabet", Usage: "print the alphabet", Destination: &showAlphabet},
			&cli.BoolFlag{Name: "info", Usage: "print raw info JSON", Destination: &showInfo},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := ckpt.Open(snapshotPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			info, err := snapshot.ReadInfo(f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if showAll {
				showSections, showTensors, showStats, showAlphabet, showInfo = true, true, true, true, true
			}

			fmt.Printf("file:       %s\n", snapshotPath)
			fmt.Printf("container:  v%d.%d, %d bytes\n", f.Header.Major, f.Header.Minor, f.Header.FileSize)
			fmt.Printf("run:        %s\n", info.RunID)
			fmt.Printf("step:       %d (loop %d, position %d)\n", info.Step, info.Loop, info.Position)
			fmt.Printf("samples:    %d\n", info.Samples)
			fmt.Printf("smoothLoss: %.4f\n", info.SmoothLoss)
			if !info.CreatedAt.IsZero() {
				fmt.Printf("created:    %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			}
			n := info.Network
			fmt.Printf("network:    %s, vocab %d, hidden %d, layers %d, lr %g\n",
				n.Variant, n.Vocab, n.Hidden, n.Layers, n.LearningRate)

			if showInfo {
				sec := f.Section(ckpt.SectionInfo)
				fmt.Println()
				fmt.Println("info:")
				fmt.Println(string(f.SectionData(sec)))
			}

			if showAlphabet {
				var symbols []string
				if sec := f.Section(ckpt.SectionAlphabet); sec != nil {
					if err := json.Unmarshal(f.SectionData(sec), &symbols); err != nil {
						return cli.Exit(fmt.Sprintf("error: decode alphabet: %v", err), 1)
					}
				}
				quoted := make([]string, len(symbols))
				for i, s := range symbols {
					quoted[i] = fmt.Sprintf("%q", s)
				}
				fmt.Println()
				fmt.Printf("alphabet (%d): %s\n", len(symbols), strings.Join(quoted, " "))
			}

			if showSections {
				fmt.Println()
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TYPE\tVERSION\tOFFSET\tSIZE")
				for _, s := range f.Sections {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", s.Type, s.Version, s.Offset, s.Size)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if showTensors || showStats {
				ti, err := f.Tensors()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				fmt.Println()
				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				header := "NAME\tDTYPE\tSHAPE\tBYTES"
				if showStats {
					header += "\tMIN\tMAX\tMEAN\tNORM"
				}
				fmt.Fprintln(tw, header)
				for i := 0; i < ti.Count(); i++ {
					name, err := ti.Name(i)
					if err != nil {
						return cli.Exit(fmt.Sprintf("error: %v", err), 1)
					}
					if tensorFilter != "" && !strings.Contains(name, tensorFilter) {
						continue
					}
					e, _ := ti.Entry(i)
					shape, _ := ti.Shape(i)
					fmt.Fprintf(tw, "%s\t%s\t%v\t%d", name, e.DType, shape, e.DataSize)
					if showStats {
						data, _, err := f.ReadF64(ti, name)
						if err != nil {
							return cli.Exit(fmt.Sprintf("error: %v", err), 1)
						}
						if len(data) > 0 {
							fmt.Fprintf(tw, "\t%.4g\t%.4g\t%.4g\t%.4g",
								floats.Min(data), floats.Max(data),
								floats.Sum(data)/float64(len(data)), floats.Norm(data, 2))
						}
					}
					fmt.Fprintln(tw)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
