package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/options"
	"github.com/samcharles93/charnn/internal/snapshot"
)

func resolveWith(t *testing.T, resume *snapshot.Snapshot, args ...string) (options.Options, error) {
	t.Helper()
	var (
		path string
		got  options.Options
		rerr error
	)
	cmd := &cli.Command{
		Name:  "t",
		Flags: append([]cli.Flag{optionsFileFlag(&path)}, optionFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			got, rerr = resolveOptions(c, path, resume, logger.Discard())
			return nil
		},
	}
	if err := cmd.Run(context.Background(), append([]string{"t"}, args...)); err != nil {
		t.Fatalf("run command: %v", err)
	}
	return got, rerr
}

func writeOptions(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "options.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write options: %v", err)
	}
	return path
}

func TestResolveOptionsDefaults(t *testing.T) {
	t.Parallel()
	missing := filepath.Join(t.TempDir(), "options.yaml")
	if _, err := resolveWith(t, nil, "--options", missing); err == nil {
		t.Fatal("expected error for an explicit missing options file")
	}

	got, err := resolveWith(t, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != options.Defaults() {
		t.Fatalf("got %+v want defaults", got)
	}
}

func TestResolveOptionsFlagsOverrideFile(t *testing.T) {
	t.Parallel()
	path := writeOptions(t, "hiddenSize: 30\nlayers: 3\nlearningRate: 0.2\n")
	got, err := resolveWith(t, nil, "--options", path, "--hidden-size", "7", "--single-layer")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.HiddenSize != 7 {
		t.Fatalf("hiddenSize: got %d want 7", got.HiddenSize)
	}
	if got.Layers != 3 || got.LearningRate != 0.2 {
		t.Fatalf("file values: got layers %d lr %v", got.Layers, got.LearningRate)
	}
	if !got.UseSingleLayerNet {
		t.Fatal("single-layer flag ignored")
	}
	if got.SequenceLength != options.Defaults().SequenceLength {
		t.Fatalf("sequenceLength: got %d want default", got.SequenceLength)
	}
}

func TestResolveOptionsSanitizesFlags(t *testing.T) {
	t.Parallel()
	got, err := resolveWith(t, nil, "--options", writeOptions(t, "layers: 1\n"), "--hidden-size=-5", "--temperature=2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.HiddenSize != 100 || got.SamplingTemp != 1 {
		t.Fatalf("got hiddenSize %d temp %v want 100 and 1", got.HiddenSize, got.SamplingTemp)
	}
}

func TestResolveOptionsPrefersSnapshot(t *testing.T) {
	t.Parallel()
	stored := options.Defaults()
	stored.HiddenSize = 12
	stored.SequenceLength = 9
	snap := &snapshot.Snapshot{Info: snapshot.Info{Options: &stored}}

	got, err := resolveWith(t, snap, "--seq-length", "20")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.HiddenSize != 12 || got.SequenceLength != 20 {
		t.Fatalf("got hiddenSize %d seq %d want 12 and 20", got.HiddenSize, got.SequenceLength)
	}

	path := writeOptions(t, "hiddenSize: 40\n")
	got, err = resolveWith(t, snap, "--options", path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.HiddenSize != 40 {
		t.Fatalf("explicit options file: got hiddenSize %d want 40", got.HiddenSize)
	}
}
