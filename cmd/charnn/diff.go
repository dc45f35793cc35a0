package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/charnn/internal/logits"
	"github.com/samcharles93/charnn/internal/snapshot"
)

// diffStats compares two next-symbol distributions.
type diffStats struct {
	MaxAbs    float64
	MeanAbs   float64
	Cosine    float64
	KL        float64
	Top1A     int
	Top1B     int
	Top1Match bool
}

type diffAccumulator struct {
	steps     int
	maxAbs    float64
	sumMean   float64
	sumCos    float64
	sumKL     float64
	top1Match int
}

func (a *diffAccumulator) add(s diffStats) {
	a.steps++
	a.maxAbs = math.Max(a.maxAbs, s.MaxAbs)
	a.sumMean += s.MeanAbs
	a.sumCos += s.Cosine
	a.sumKL += s.KL
	if s.Top1Match {
		a.top1Match++
	}
}

// klFloor keeps KL finite when b assigns a symbol zero probability.
const klFloor = 1e-12

func diffDistributions(a, b []float64) diffStats {
	if len(a) != len(b) || len(a) == 0 {
		panic("diff: distributions must have the same non-zero length")
	}
	var maxAbs, sumAbs, kl float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		sumAbs += d
		maxAbs = math.Max(maxAbs, d)
		if a[i] > 0 {
			kl += a[i] * math.Log(a[i]/math.Max(b[i], klFloor))
		}
	}
	cos := 0.0
	if na, nb := floats.Norm(a, 2), floats.Norm(b, 2); na > 0 && nb > 0 {
		cos = floats.Dot(a, b) / (na * nb)
	}
	ta, tb := logits.Argmax(a), logits.Argmax(b)
	return diffStats{
		MaxAbs:    maxAbs,
		MeanAbs:   sumAbs / float64(len(a)),
		Cosine:    cos,
		KL:        kl,
		Top1A:     ta,
		Top1B:     tb,
		Top1Match: ta == tb,
	}
}

func diffCmd() *cli.Command {
	var (
		pathA     string
		pathB     string
		text      string
		temp      float64
		keepState bool
		perStep   bool
	)

	return &cli.Command{
		Name:  "diff",
		Usage: "Compare the next-symbol distributions of two snapshots along a text",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "a", Usage: "first snapshot", Destination: &pathA, Required: true},
			&cli.StringFlag{Name: "b", Usage: "second snapshot", Destination: &pathB, Required: true},
			&cli.StringFlag{
				Name:        "text",
				Usage:       "text fed to both networks",
				Destination: &text,
				Required:    true,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"temp", "t"},
				Usage:       "temperature applied to both distributions",
				Value:       1,
				Destination: &temp,
			},
			&cli.BoolFlag{
				Name:        "keep-state",
				Usage:       "start from the hidden state stored in each snapshot instead of zeros",
				Destination: &keepState,
			},
			&cli.BoolFlag{Name: "steps", Usage: "print stats for every position", Destination: &perStep},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !logits.ValidTemperature(temp) {
				return cli.Exit(fmt.Sprintf("error: temperature %g outside (0, 1]", temp), 1)
			}
			a, err := snapshot.Load(pathA)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			b, err := snapshot.Load(pathB)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if !sameSymbols(a.Alphabet.Symbols(), b.Alphabet.Symbols()) {
				return cli.Exit("error: snapshots use different alphabets", 1)
			}
			ids, err := a.Alphabet.Encode(text)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: text: %v", err), 1)
			}
			if !keepState {
				a.Network.ResetHidden()
				b.Network.ResetHidden()
			}

			pa := make([]float64, a.Alphabet.Size())
			pb := make([]float64, b.Alphabet.Size())
			var acc diffAccumulator
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if perStep {
				fmt.Fprintln(tw, "POS\tINPUT\tMAXABS\tCOSINE\tKL\tTOP1")
			}
			for i, id := range ids {
				a.Network.Advance([]int{id})
				b.Network.Advance([]int{id})
				a.Network.NextDistribution(pa, temp)
				b.Network.NextDistribution(pb, temp)
				s := diffDistributions(pa, pb)
				acc.add(s)
				if perStep {
					top := fmt.Sprintf("%q", a.Alphabet.Symbol(s.Top1A))
					if !s.Top1Match {
						top += fmt.Sprintf(" vs %q", b.Alphabet.Symbol(s.Top1B))
					}
					fmt.Fprintf(tw, "%d\t%q\t%.4g\t%.6f\t%.4g\t%s\n",
						i, a.Alphabet.Symbol(id), s.MaxAbs, s.Cosine, s.KL, top)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			n := float64(acc.steps)
			fmt.Printf("positions:   %d\n", acc.steps)
			fmt.Printf("max abs:     %.6g\n", acc.maxAbs)
			fmt.Printf("mean abs:    %.6g\n", acc.sumMean/n)
			fmt.Printf("mean cosine: %.6f\n", acc.sumCos/n)
			fmt.Printf("mean KL:     %.6g nats\n", acc.sumKL/n)
			fmt.Printf("top1 match:  %d/%d\n", acc.top1Match, acc.steps)
			return nil
		},
	}
}

func sameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
