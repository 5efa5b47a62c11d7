// Package models resolves model identifiers to sentence segmenters.
//
// A model is looked up in this order:
//
//  1. a directory named by the identifier itself, when it looks like a path;
//  2. <dir>/<name> when that directory holds a meta.yaml or a model.onnx;
//  3. a built-in rule model ("sentencizer", "en_core_web_sm").
//
// Model directories describe themselves with meta.yaml:
//
//	name: sat-3l-sm
//	kind: sat            # sat or rules
//	lang: xx
//	model: model.onnx
//	tokenizer: sentencepiece.bpe.model
//	threshold: 0.025
//
// Rule models list extra abbreviations instead of model files.
package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	sentsplit "github.com/jamesainslie/go-sentsplit"
	"github.com/jamesainslie/go-sentsplit/inference"
)

// MetaFile is the descriptor file name inside a model directory.
const MetaFile = "meta.yaml"

// Default file names inside a SaT model directory.
const (
	DefaultModelFile     = "model.onnx"
	DefaultTokenizerFile = "sentencepiece.bpe.model"
)

// Kind is a model family.
type Kind string

// Model families.
const (
	KindSaT   Kind = "sat"
	KindRules Kind = "rules"
)

// Meta is the content of a meta.yaml file.
type Meta struct {
	Name          string   `yaml:"name"`
	Kind          Kind     `yaml:"kind"`
	Lang          string   `yaml:"lang"`
	Model         string   `yaml:"model"`
	Tokenizer     string   `yaml:"tokenizer"`
	Threshold     float32  `yaml:"threshold"`
	Abbreviations []string `yaml:"abbreviations"`
}

// ReadMeta parses dir/meta.yaml. Unknown keys are rejected.
func ReadMeta(dir string) (Meta, error) {
	b, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return Meta{}, err
	}
	return parseMeta(b)
}

func parseMeta(b []byte) (Meta, error) {
	var m Meta
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Meta{}, fmt.Errorf("%w: %s: %w", sentsplit.ErrInvalidModel, MetaFile, err)
	}

	if m.Kind == "" {
		m.Kind = KindSaT
	}
	switch m.Kind {
	case KindSaT:
		if m.Model == "" {
			m.Model = DefaultModelFile
		}
		if m.Tokenizer == "" {
			m.Tokenizer = DefaultTokenizerFile
		}
	case KindRules:
	default:
		return Meta{}, fmt.Errorf("%w: %s: unknown kind %q", sentsplit.ErrInvalidModel, MetaFile, m.Kind)
	}
	if m.Threshold < 0 || m.Threshold >= 1 {
		return Meta{}, fmt.Errorf("%w: %s: threshold %v outside [0, 1)", sentsplit.ErrInvalidModel, MetaFile, m.Threshold)
	}
	return m, nil
}

// builtins maps built-in model names to their descriptors.
var builtins = map[string]Meta{
	"sentencizer":    {Name: "sentencizer", Kind: KindRules, Lang: "xx"},
	"en_core_web_sm": {Name: "en_core_web_sm", Kind: KindRules, Lang: "en"},
}

// Builtins returns the sorted names of the built-in models.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadOptions configures the segmenter built for a model.
type LoadOptions struct {
	Device         inference.Device
	PoolSize       int
	IntraOpThreads int
	// Threshold overrides the model's threshold when positive.
	Threshold float32
}

// Registry loads models by name from Dir and the built-ins.
type Registry struct {
	Dir    string
	Logger *slog.Logger
}

// Load resolves name and returns a ready segmenter. The caller closes it.
func (r Registry) Load(name string, opts LoadOptions) (sentsplit.Model, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, meta, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved model", "name", name, "kind", meta.Kind, "dir", dir)

	switch meta.Kind {
	case KindRules:
		if opts.Threshold > 0 {
			logger.Debug("threshold ignored by rule model", "model", name)
		}
		return sentsplit.NewRuleSegmenter(sentsplit.WithAbbreviations(meta.Abbreviations...)), nil
	default:
		threshold := meta.Threshold
		if opts.Threshold > 0 {
			threshold = opts.Threshold
		}
		sopts := []sentsplit.Option{
			sentsplit.WithDevice(opts.Device),
			sentsplit.WithPoolSize(opts.PoolSize),
			sentsplit.WithIntraOpThreads(opts.IntraOpThreads),
			sentsplit.WithLogger(logger),
		}
		if threshold > 0 {
			sopts = append(sopts, sentsplit.WithThreshold(threshold))
		}
		seg, err := sentsplit.New(
			filepath.Join(dir, meta.Model),
			filepath.Join(dir, meta.Tokenizer),
			sopts...,
		)
		if err != nil {
			return nil, fmt.Errorf("loading model %q: %w", name, err)
		}
		return seg, nil
	}
}

// resolve returns the directory and descriptor for name. Built-ins have no
// directory.
func (r Registry) resolve(name string) (string, Meta, error) {
	if name == "" {
		return "", Meta{}, fmt.Errorf("%w: empty model name", sentsplit.ErrModelNotFound)
	}

	var candidates []string
	if looksLikePath(name) {
		candidates = append(candidates, name)
	} else if r.Dir != "" {
		candidates = append(candidates, filepath.Join(r.Dir, name))
	}

	for _, dir := range candidates {
		meta, ok, err := describeDir(dir)
		if err != nil {
			return "", Meta{}, err
		}
		if ok {
			if meta.Name == "" {
				meta.Name = filepath.Base(dir)
			}
			return dir, meta, nil
		}
	}

	if meta, ok := builtins[name]; ok {
		return "", meta, nil
	}
	return "", Meta{}, fmt.Errorf("%w: %q (searched %s; built-ins: %s)",
		sentsplit.ErrModelNotFound, name, searched(candidates), strings.Join(Builtins(), ", "))
}

// describeDir reports whether dir is a model directory and returns its
// descriptor. A directory without meta.yaml but with model.onnx is a SaT
// model with default file names.
func describeDir(dir string) (Meta, bool, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Meta{}, false, nil
	}

	meta, err := ReadMeta(dir)
	switch {
	case err == nil:
		return meta, true, nil
	case errors.Is(err, sentsplit.ErrInvalidModel):
		return Meta{}, false, fmt.Errorf("%s: %w", dir, err)
	case !errors.Is(err, os.ErrNotExist):
		return Meta{}, false, fmt.Errorf("%w: %w", sentsplit.ErrInvalidModel, err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultModelFile)); err == nil {
		return Meta{Kind: KindSaT, Model: DefaultModelFile, Tokenizer: DefaultTokenizerFile}, true, nil
	}
	return Meta{}, false, nil
}

func looksLikePath(name string) bool {
	return filepath.IsAbs(name) ||
		strings.ContainsRune(name, filepath.Separator) ||
		strings.ContainsRune(name, '/') ||
		name == "." || name == ".."
}

func searched(dirs []string) string {
	if len(dirs) == 0 {
		return "no directories"
	}
	return strings.Join(dirs, ", ")
}
