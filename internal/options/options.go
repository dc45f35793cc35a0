// Package options reads and writes the flat key/value training options file.
//
// Every key has a default. A value that cannot be parsed or falls outside its
// valid range is replaced by the default and reported as a warning; it never
// fails the load.
package options

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/charnn/internal/logger"
)

// Options holds every training and sampling setting.
type Options struct {
	HiddenSize            int     `yaml:"hiddenSize" json:"hiddenSize"`
	Layers                int     `yaml:"layers" json:"layers"`
	SequenceLength        int     `yaml:"sequenceLength" json:"sequenceLength"`
	LearningRate          float64 `yaml:"learningRate" json:"learningRate"`
	SamplingTemp          float64 `yaml:"samplingTemp" json:"samplingTemp"`
	PrintOptions          bool    `yaml:"printOptions" json:"printOptions"`
	TrainingSampleLength  int     `yaml:"trainingSampleLength" json:"trainingSampleLength"`
	SnapshotEveryNSamples int     `yaml:"snapshotEveryNSamples" json:"snapshotEveryNSamples"`
	LoopAroundTimes       int     `yaml:"loopAroundTimes" json:"loopAroundTimes"`
	SampleEveryNSteps     int     `yaml:"sampleEveryNSteps" json:"sampleEveryNSteps"`
	InputFile             string  `yaml:"inputFile" json:"inputFile"`
	UseSingleLayerNet     bool    `yaml:"useSingleLayerNet" json:"useSingleLayerNet"`
}

// Defaults returns the built-in settings.
func Defaults() Options {
	return Options{
		HiddenSize:            100,
		Layers:                2,
		SequenceLength:        50,
		LearningRate:          0.1,
		SamplingTemp:          1.0,
		PrintOptions:          true,
		TrainingSampleLength:  400,
		SnapshotEveryNSamples: 50,
		LoopAroundTimes:       0,
		SampleEveryNSteps:     100,
		InputFile:             "input.txt",
		UseSingleLayerNet:     false,
	}
}

// Load reads the options file at path. I/O and YAML syntax errors are
// returned; bad values are not.
func Load(path string, log logger.Logger) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("load options from %s: %w", path, err)
	}
	o, err := Parse(data, log.With("file", path))
	if err != nil {
		return Defaults(), fmt.Errorf("load options from %s: %w", path, err)
	}
	return o, nil
}

// Parse decodes an options document. Keys are matched exactly; unknown keys
// are reported and ignored.
func Parse(data []byte, log logger.Logger) (Options, error) {
	o := Defaults()
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return o, fmt.Errorf("parse options: %w", err)
	}
	if len(doc.Content) == 0 {
		return o, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return o, fmt.Errorf("parse options: line %d: expected key: value pairs", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		f, ok := lookup(key.Value)
		if !ok {
			log.Warn("unknown option ignored", "key", key.Value, "line", key.Line)
			continue
		}
		if val.Kind != yaml.ScalarNode || val.Tag == "!!null" {
			log.Warn("option has no scalar value, using default",
				"key", f.key, "line", val.Line, "default", f.format(&o))
			continue
		}
		if err := f.decode(&o, val); err != nil {
			f.reset(&o)
			log.Warn("cannot parse option, using default",
				"key", f.key, "value", val.Value, "default", f.format(&o))
			continue
		}
		if !f.valid(&o) {
			f.reset(&o)
			log.Warn("option out of range, using default",
				"key", f.key, "value", val.Value, "want", f.rule, "default", f.format(&o))
		}
	}
	return o, nil
}

// Sanitize resets every out-of-range value to its default, reporting each.
// It is applied after command-line overrides.
func (o Options) Sanitize(log logger.Logger) Options {
	for _, f := range fields {
		if !f.valid(&o) {
			bad := f.format(&o)
			f.reset(&o)
			log.Warn("option out of range, using default",
				"key", f.key, "value", bad, "want", f.rule, "default", f.format(&o))
		}
	}
	return o
}

// Entry is one key and its formatted value.
type Entry struct {
	Key   string
	Value string
}

// Entries lists every option in file order.
func (o Options) Entries() []Entry {
	out := make([]Entry, len(fields))
	for i, f := range fields {
		out[i] = Entry{Key: f.key, Value: f.format(&o)}
	}
	return out
}

// Print writes an aligned key/value table.
func (o Options) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range o.Entries() {
		fmt.Fprintf(tw, "%s\t%s\n", e.Key, e.Value)
	}
	return tw.Flush()
}

// Marshal renders the options as a YAML document.
func (o Options) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# charnn training options\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(o); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the options to path.
func (o Options) Save(path string) error {
	data, err := o.Marshal()
	if err != nil {
		return fmt.Errorf("save options to %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save options to %s: %w", path, err)
	}
	return nil
}

type field struct {
	key    string
	rule   string
	decode func(*Options, *yaml.Node) error
	valid  func(*Options) bool
	reset  func(*Options)
	format func(*Options) string
}

func newField[T any](key, rule string, ptr func(*Options) *T, valid func(T) bool, format func(T) string) field {
	def := Defaults()
	return field{
		key:  key,
		rule: rule,
		decode: func(o *Options, n *yaml.Node) error {
			var v T
			if err := n.Decode(&v); err != nil {
				return err
			}
			*ptr(o) = v
			return nil
		},
		valid: func(o *Options) bool {
			return valid == nil || valid(*ptr(o))
		},
		reset: func(o *Options) {
			*ptr(o) = *ptr(&def)
		},
		format: func(o *Options) string {
			return format(*ptr(o))
		},
	}
}

func atLeast(lo int) func(int) bool {
	return func(v int) bool { return v >= lo }
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

var fields = []field{
	newField("hiddenSize", ">= 1", func(o *Options) *int { return &o.HiddenSize }, atLeast(1), strconv.Itoa),
	newField("layers", ">= 1", func(o *Options) *int { return &o.Layers }, atLeast(1), strconv.Itoa),
	newField("sequenceLength", ">= 1", func(o *Options) *int { return &o.SequenceLength }, atLeast(1), strconv.Itoa),
	newField("learningRate", ">= 0", func(o *Options) *float64 { return &o.LearningRate },
		func(v float64) bool { return v >= 0 }, formatFloat),
	newField("samplingTemp", "in (0, 1]", func(o *Options) *float64 { return &o.SamplingTemp },
		func(v float64) bool { return v > 0 && v <= 1 }, formatFloat),
	newField("printOptions", "", func(o *Options) *bool { return &o.PrintOptions }, nil, strconv.FormatBool),
	newField("trainingSampleLength", ">= 1", func(o *Options) *int { return &o.TrainingSampleLength }, atLeast(1), strconv.Itoa),
	newField("snapshotEveryNSamples", ">= 1", func(o *Options) *int { return &o.SnapshotEveryNSamples }, atLeast(1), strconv.Itoa),
	newField("loopAroundTimes", ">= 0", func(o *Options) *int { return &o.LoopAroundTimes }, atLeast(0), strconv.Itoa),
	newField("sampleEveryNSteps", ">= 1", func(o *Options) *int { return &o.SampleEveryNSteps }, atLeast(1), strconv.Itoa),
	newField("inputFile", "non-empty", func(o *Options) *string { return &o.InputFile },
		func(v string) bool { return v != "" }, func(v string) string { return v }),
	newField("useSingleLayerNet", "", func(o *Options) *bool { return &o.UseSingleLayerNet }, nil, strconv.FormatBool),
}

func lookup(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}
