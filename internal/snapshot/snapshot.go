// Package snapshot saves and restores complete training state: parameters,
// Adagrad memory, hidden state, alphabet and run position.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/charnn/internal/corpus"
	"github.com/samcharles93/charnn/internal/options"
	"github.com/samcharles93/charnn/internal/rnn"
	"github.com/samcharles93/charnn/pkg/ckpt"
)

// FormatVersion is stored in Info and bumped when tensor naming changes.
const FormatVersion = 1

var (
	ErrTensorNotFound = ckpt.ErrTensorNotFound
	ErrShapeMismatch  = errors.New("snapshot: tensor shape mismatch")
	ErrNoSnapshots    = errors.New("snapshot: no snapshots found")
)

// NetworkInfo is the construction config of the saved network.
type NetworkInfo struct {
	Vocab        int     `json:"vocab"`
	Hidden       int     `json:"hidden"`
	Layers       int     `json:"layers"`
	Variant      string  `json:"variant"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`
}

// Info describes where in a run the snapshot was taken.
type Info struct {
	Format   int    `json:"format"`
	RunID    string `json:"run_id"`
	Step     int    `json:"step"`
	Position int    `json:"position"`
	Loop     int    `json:"loop"`
	Samples  int    `json:"samples"`
	// Sampled reports that the sample due at Step was already drawn.
	Sampled bool `json:"sampled"`
	// SamplerDraws is how far the training sampler's random source has
	// advanced, so a resumed run draws the same text.
	SamplerDraws uint64           `json:"sampler_draws"`
	SmoothLoss   float64          `json:"smooth_loss"`
	CreatedAt    time.Time        `json:"created_at"`
	Network      NetworkInfo      `json:"network"`
	Options      *options.Options `json:"options,omitempty"`
}

// Snapshot is a network together with its alphabet and run metadata.
type Snapshot struct {
	Info     Info
	Alphabet *corpus.Alphabet
	Network  *rnn.Network
}

// NetworkConfig converts the stored network description back to a config.
func (i Info) NetworkConfig() (rnn.Config, error) {
	v, err := rnn.ParseVariant(i.Network.Variant)
	if err != nil {
		return rnn.Config{}, err
	}
	return rnn.Config{
		Vocab:        i.Network.Vocab,
		Hidden:       i.Network.Hidden,
		Layers:       i.Network.Layers,
		LearningRate: i.Network.LearningRate,
		Variant:      v,
		Seed:         i.Network.Seed,
	}, nil
}

// DescribeNetwork fills NetworkInfo from a live network.
func DescribeNetwork(n *rnn.Network) NetworkInfo {
	cfg := n.Config()
	return NetworkInfo{
		Vocab:        cfg.Vocab,
		Hidden:       cfg.Hidden,
		Layers:       cfg.Layers,
		Variant:      cfg.Variant.String(),
		LearningRate: cfg.LearningRate,
		Seed:         cfg.Seed,
	}
}

// FileName returns the file name used for the snapshot at step.
func FileName(step int) string {
	return fmt.Sprintf("snapshot-%d.ckpt", step)
}

// Save writes s to path atomically: the file is built under a temporary
// name in the same directory and renamed into place.
func Save(path string, s *Snapshot) (err error) {
	s.Info.Format = FormatVersion
	s.Info.Network = DescribeNetwork(s.Network)
	if s.Info.CreatedAt.IsZero() {
		s.Info.CreatedAt = time.Now().UTC()
	}
	info, err := json.Marshal(s.Info)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	alpha, err := json.Marshal(s.Alphabet.Symbols())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w, err := ckpt.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err = w.WriteSection(ckpt.SectionInfo, 1, info); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err = w.WriteSection(ckpt.SectionAlphabet, 1, alpha); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err = w.WriteTensors(networkTensors(s.Network)); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err = w.Finalise(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save snapshot %s: %w", path, err)
	}
	return nil
}

func networkTensors(n *rnn.Network) []ckpt.Tensor {
	var out []ckpt.Tensor
	for _, t := range n.Params().Tensors() {
		out = append(out, ckpt.Tensor{Name: "param/" + t.Name, Shape: t.Shape, Data: t.Data})
	}
	for _, t := range n.Memory().Tensors() {
		out = append(out, ckpt.Tensor{Name: "memory/" + t.Name, Shape: t.Shape, Data: t.Data})
	}
	for l, h := range n.Hidden() {
		out = append(out, ckpt.Tensor{Name: "hidden/" + strconv.Itoa(l), Shape: []int{len(h)}, Data: h})
	}
	return out
}

// Load reads a snapshot and rebuilds its network.
func Load(path string) (*Snapshot, error) {
	f, err := ckpt.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	s, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return s, nil
}

// ReadInfo decodes only the info section.
func ReadInfo(f *ckpt.File) (Info, error) {
	var info Info
	sec := f.Section(ckpt.SectionInfo)
	if sec == nil {
		return info, fmt.Errorf("%w: missing info section", ckpt.ErrCorruptFile)
	}
	if err := json.Unmarshal(f.SectionData(sec), &info); err != nil {
		return info, fmt.Errorf("decode info: %w", err)
	}
	if info.Format != FormatVersion {
		return info, fmt.Errorf("unsupported snapshot format %d", info.Format)
	}
	return info, nil
}

func decode(f *ckpt.File) (*Snapshot, error) {
	info, err := ReadInfo(f)
	if err != nil {
		return nil, err
	}
	sec := f.Section(ckpt.SectionAlphabet)
	if sec == nil {
		return nil, fmt.Errorf("%w: missing alphabet section", ckpt.ErrCorruptFile)
	}
	var symbols []string
	if err := json.Unmarshal(f.SectionData(sec), &symbols); err != nil {
		return nil, fmt.Errorf("decode alphabet: %w", err)
	}
	alpha, err := corpus.AlphabetFromSymbols(symbols)
	if err != nil {
		return nil, err
	}

	cfg, err := info.NetworkConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Vocab != alpha.Size() {
		return nil, fmt.Errorf("network vocabulary %d does not match alphabet of %d symbols", cfg.Vocab, alpha.Size())
	}
	net, err := rnn.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := Restore(net, f); err != nil {
		return nil, err
	}
	return &Snapshot{Info: info, Alphabet: alpha, Network: net}, nil
}

// Restore overwrites the parameters, memory and hidden state of net with the
// tensors stored in f. Every tensor must be present with the exact shape.
func Restore(net *rnn.Network, f *ckpt.File) error {
	ti, err := f.Tensors()
	if err != nil {
		return err
	}
	fill := func(name string, want []int, dst []float64) error {
		data, shape, err := f.ReadF64(ti, name)
		if err != nil {
			return err
		}
		if !sameShape(shape, want) {
			return fmt.Errorf("%w: %s is %v, network needs %v", ErrShapeMismatch, name, shape, want)
		}
		copy(dst, data)
		return nil
	}

	for _, t := range net.Params().Tensors() {
		if err := fill("param/"+t.Name, t.Shape, t.Data); err != nil {
			return err
		}
	}
	for _, t := range net.Memory().Tensors() {
		if err := fill("memory/"+t.Name, t.Shape, t.Data); err != nil {
			return err
		}
	}
	hidden := net.Hidden()
	for l, h := range hidden {
		if err := fill("hidden/"+strconv.Itoa(l), []int{len(h)}, h); err != nil {
			return err
		}
	}
	net.SetHidden(hidden)
	return nil
}

func sameShape(a, b []int) bool {
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

// Latest returns the path of the snapshot with the highest step in dir.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list snapshots in %s: %w", dir, err)
	}
	type found struct {
		step int
		name string
	}
	var all []found
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "snapshot-") || !strings.HasSuffix(name, ".ckpt") {
			continue
		}
		step, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "snapshot-"), ".ckpt"))
		if err != nil {
			continue
		}
		all = append(all, found{step, name})
	}
	if len(all) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoSnapshots, dir)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].step > all[j].step })
	return filepath.Join(dir, all[0].name), nil
}
