// Package trainer runs the windowed training loop over a corpus: it slides
// windows of sequenceLength symbols, samples and snapshots on a cadence, and
// journals the history of the run.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/logger"
	"github.com/samcharles93/charnn/internal/logits"
	"github.com/samcharles93/charnn/internal/options"
	"github.com/samcharles93/charnn/internal/rnn"
	"github.com/samcharles93/charnn/internal/snapshot"
)

const defaultProgressEvery = 2 * time.Second

// Config wires a trainer.
type Config struct {
	Options options.Options
	Corpus  *corpus.Corpus
	// CorpusName is recorded in the journal, usually the input path.
	CorpusName string

	// Resume continues the run stored in a snapshot. Its alphabet must be the
	// corpus alphabet. When nil a fresh network is built from Options.
	Resume *snapshot.Snapshot
	Seed   int64

	// SnapshotDir receives snapshot-<step>.ckpt files. Empty disables snapshots.
	SnapshotDir string
	Recorder    Recorder
	// Samples receives the text drawn during training.
	Samples io.Writer
	Logger  logger.Logger

	// MaxSteps stops the run after that many windows. Zero means no limit
	// other than loopAroundTimes.
	MaxSteps      int
	ProgressEvery time.Duration
}

// Result summarises a finished run.
type Result struct {
	RunID      string
	Steps      int
	Loops      int
	Samples    int
	SmoothLoss float64
	Snapshots  []string
}

// Trainer owns a network and the position of a run over its corpus.
type Trainer struct {
	cfg     Config
	opts    options.Options
	net     *rnn.Network
	sampler *logits.Sampler
	rec     Recorder
	log     logger.Logger
	out     io.Writer
	runID   string
	resumed bool

	step     int
	pos      int
	loop     int
	samples  int
	smooth   float64
	sampled  bool
	lastSnap int
	snaps    []string
}

// NetworkConfig builds the network config implied by opts.
func NetworkConfig(opts options.Options, vocab int, seed int64) rnn.Config {
	cfg := rnn.Config{
		Vocab:        vocab,
		Hidden:       opts.HiddenSize,
		Layers:       opts.Layers,
		LearningRate: opts.LearningRate,
		Seed:         seed,
	}
	if opts.UseSingleLayerNet {
		cfg.Variant = rnn.VariantSimple
	}
	return cfg
}

// New validates cfg and prepares a run.
func New(cfg Config) (*Trainer, error) {
	if cfg.Corpus == nil {
		return nil, errors.New("trainer: no corpus")
	}
	opts := cfg.Options
	if err := cfg.Corpus.CheckWindow(opts.SequenceLength); err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	t := &Trainer{
		cfg:      cfg,
		opts:     opts,
		rec:      cfg.Recorder,
		log:      cfg.Logger,
		out:      cfg.Samples,
		lastSnap: -1,
	}
	if t.rec == nil {
		t.rec = nopRecorder{}
	}
	if t.log == nil {
		t.log = logger.Discard()
	}
	if t.out == nil {
		t.out = io.Discard
	}

	vocab := cfg.Corpus.Alphabet.Size()
	if r := cfg.Resume; r != nil {
		if r.Alphabet.Size() != vocab {
			return nil, fmt.Errorf("trainer: snapshot alphabet has %d symbols, corpus has %d", r.Alphabet.Size(), vocab)
		}
		t.net = r.Network
		t.opts = adoptNetwork(opts, r.Network, t.log)
		t.sampler = logits.NewSampler(r.Info.Network.Seed)
		t.sampler.Skip(r.Info.SamplerDraws)
		t.runID = r.Info.RunID
		t.resumed = true
		t.step = r.Info.Step
		t.pos = r.Info.Position
		t.loop = r.Info.Loop
		t.samples = r.Info.Samples
		t.smooth = r.Info.SmoothLoss
		t.sampled = r.Info.Sampled
		t.lastSnap = r.Info.Step
	} else {
		net, err := rnn.New(NetworkConfig(opts, vocab, cfg.Seed))
		if err != nil {
			return nil, fmt.Errorf("trainer: %w", err)
		}
		t.net = net
		t.sampler = logits.NewSampler(cfg.Seed)
		t.runID = uuid.NewString()
		t.smooth = -math.Log(1/float64(vocab)) * float64(opts.SequenceLength)
	}
	return t, nil
}

// adoptNetwork makes opts describe a restored network. Shape options that
// disagree with it cannot apply to trained weights, so they are replaced and
// reported. The learning rate is not part of the shape and is applied to the
// network instead.
func adoptNetwork(opts options.Options, net *rnn.Network, log logger.Logger) options.Options {
	cfg := net.Config()
	single := cfg.Variant == rnn.VariantSimple
	if opts.HiddenSize != cfg.Hidden {
		log.Warn("hiddenSize ignored on resume", "requested", opts.HiddenSize, "snapshot", cfg.Hidden)
		opts.HiddenSize = cfg.Hidden
	}
	if opts.UseSingleLayerNet != single {
		log.Warn("useSingleLayerNet ignored on resume", "requested", opts.UseSingleLayerNet, "snapshot", single)
		opts.UseSingleLayerNet = single
	}
	if !single && opts.Layers != cfg.Layers {
		log.Warn("layers ignored on resume", "requested", opts.Layers, "snapshot", cfg.Layers)
		opts.Layers = cfg.Layers
	}
	if opts.LearningRate != cfg.LearningRate {
		log.Info("learning rate changed on resume", "from", cfg.LearningRate, "to", opts.LearningRate)
		net.SetLearningRate(opts.LearningRate)
	}
	return opts
}

// RunID returns the id the run is journaled under.
func (t *Trainer) RunID() string { return t.runID }

// Options returns the options the run trains with. On resume these follow
// the restored network's shape.
func (t *Trainer) Options() options.Options { return t.opts }

// Network returns the network being trained.
func (t *Trainer) Network() *rnn.Network { return t.net }

// Run trains until every loop is consumed, MaxSteps is reached or ctx is
// cancelled. A final snapshot is written in all three cases. On cancellation
// the context error is returned along with the partial result.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if err := t.rec.BeginRun(ctx, t.runID, t.cfg.CorpusName, t.opts, t.resumed); err != nil {
		return t.result(), err
	}
	log := t.log.With("run", t.runID)
	log.Info("training started",
		"step", t.step,
		"position", t.pos,
		"loop", t.loop,
		"params", t.net.Params().Count(),
		"resumed", t.resumed,
	)

	every := t.cfg.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}
	progress := rate.Sometimes{First: 1, Interval: every}
	start := time.Now()
	first := t.step
	seq := t.opts.SequenceLength

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if t.cfg.MaxSteps > 0 && t.step-first >= t.cfg.MaxSteps {
			break
		}
		inputs, targets, ok := t.cfg.Corpus.Window(t.pos, seq)
		if !ok {
			if t.loop >= t.opts.LoopAroundTimes {
				break
			}
			t.loop++
			t.pos = 0
			t.net.ResetHidden()
			log.Debug("corpus wrapped", "loop", t.loop, "step", t.step)
			continue
		}

		if t.step%t.opts.SampleEveryNSteps == 0 && !t.sampled {
			if err := t.sample(ctx, log, inputs[0]); err != nil {
				runErr = err
				break
			}
		}

		loss := t.net.Train(inputs, targets)
		t.smooth = 0.999*t.smooth + 0.001*loss
		t.step++
		t.pos += seq
		t.sampled = false

		if err := t.rec.RecordLoss(ctx, t.runID, t.step, loss, t.smooth); err != nil {
			runErr = err
			break
		}
		progress.Do(func() {
			log.Info("progress",
				"step", t.step,
				"loop", t.loop,
				"loss", loss,
				"smooth_loss", t.smooth,
				"steps_per_sec", float64(t.step-first)/time.Since(start).Seconds(),
			)
		})
	}

	if t.cfg.SnapshotDir != "" && t.lastSnap != t.step {
		if err := t.snapshot(context.WithoutCancel(ctx), log); err != nil && runErr == nil {
			runErr = err
		}
	}
	res := t.result()
	log.Info("training finished",
		"steps", res.Steps,
		"samples", res.Samples,
		"smooth_loss", res.SmoothLoss,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, runErr
}

func (t *Trainer) sample(ctx context.Context, log logger.Logger, seed int) error {
	text := t.cfg.Corpus.Alphabet.Decode(
		t.net.SampleIndices(t.sampler, t.opts.TrainingSampleLength, []int{seed}, t.opts.SamplingTemp, false))
	t.samples++
	t.sampled = true
	if _, err := fmt.Fprintf(t.out, "----\n%s\n----\n", text); err != nil {
		return fmt.Errorf("trainer: write sample: %w", err)
	}
	log.Info("sampled", "step", t.step, "smooth_loss", t.smooth, "chars", len([]rune(text)))
	if err := t.rec.RecordSample(ctx, t.runID, t.step, text); err != nil {
		return err
	}
	if t.cfg.SnapshotDir != "" && t.samples%t.opts.SnapshotEveryNSamples == 0 {
		return t.snapshot(ctx, log)
	}
	return nil
}

func (t *Trainer) snapshot(ctx context.Context, log logger.Logger) error {
	path := filepath.Join(t.cfg.SnapshotDir, snapshot.FileName(t.step))
	opts := t.opts
	s := &snapshot.Snapshot{
		Info: snapshot.Info{
			RunID:        t.runID,
			Step:         t.step,
			Position:     t.pos,
			Loop:         t.loop,
			Samples:      t.samples,
			Sampled:      t.sampled,
			SamplerDraws: t.sampler.Draws(),
			SmoothLoss:   t.smooth,
			Options:      &opts,
		},
		Alphabet: t.cfg.Corpus.Alphabet,
		Network:  t.net,
	}
	if err := snapshot.Save(path, s); err != nil {
		return err
	}
	t.lastSnap = t.step
	t.snaps = append(t.snaps, path)
	log.Info("snapshot written", "path", path, "step", t.step)
	return t.rec.RecordSnapshot(ctx, t.runID, t.step, path)
}

func (t *Trainer) result() Result {
	return Result{
		RunID:      t.runID,
		Steps:      t.step,
		Loops:      t.loop,
		Samples:    t.samples,
		SmoothLoss: t.smooth,
		Snapshots:  append([]string(nil), t.snaps...),
	}
}
