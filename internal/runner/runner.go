// Package runner wires input, model and pipeline together and prints one
// sentence per line with a blank line after each document.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	sentsplit "github.com/jamesainslie/go-sentsplit"
	"github.com/jamesainslie/go-sentsplit/inference"
	"github.com/jamesainslie/go-sentsplit/internal/config"
	"github.com/jamesainslie/go-sentsplit/internal/input"
	"github.com/jamesainslie/go-sentsplit/internal/models"
	"github.com/jamesainslie/go-sentsplit/internal/pipeline"
	"github.com/jamesainslie/go-sentsplit/internal/progress"
)

// ErrPipeline wraps model, device and segmentation failures.
var ErrPipeline = errors.New("pipeline error")

// ModelLoader resolves a model name to a ready segmenter.
type ModelLoader interface {
	Load(name string, opts models.LoadOptions) (sentsplit.Model, error)
}

// Runner executes one segmentation run. Zero-valued hooks fall back to the
// real implementations.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Models defaults to a models.Registry rooted at Config.ModelDir.
	Models ModelLoader
	// ProbeGPU defaults to inference.ProbeCUDA.
	ProbeGPU func() error
	// NumCPU defaults to runtime.NumCPU.
	NumCPU func() int
	// Progress enables the progress bar on Stderr.
	Progress bool
}

// Run segments every document of cfg.Path and writes the result to Stdout.
// Output already written stays written when Run fails.
func (r *Runner) Run(ctx context.Context, cfg config.Config) error {
	logger := r.logger()
	resolver := input.Resolver{Stdin: r.Stdin, Encoding: cfg.Encoding}

	total, known, err := resolver.CountLines(cfg.Path)
	if err != nil {
		return err
	}
	if !known {
		total = progress.Unknown
	}

	device, err := r.ResolveDevice(cfg.UseGPU)
	if err != nil {
		return err
	}
	procs := EffectiveProcesses(cfg.NProcess, device, r.numCPU())
	logger.Info("starting",
		"path", cfg.Path,
		"model", cfg.ModelName,
		"device", device.String(),
		"processes", procs,
		"documents", total,
	)

	model, err := r.models(cfg).Load(cfg.ModelName, models.LoadOptions{
		Device:         device,
		PoolSize:       procs,
		IntraOpThreads: intraOpThreads(device, procs, r.numCPU()),
		Threshold:      float32(cfg.Threshold),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipeline, err)
	}
	defer func() {
		if cerr := model.Close(); cerr != nil {
			logger.Warn("closing model", "error", cerr)
		}
	}()

	rc, err := resolver.Open(cfg.Path)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	bar := progress.New(r.Stderr, total, r.Progress)
	out := bufio.NewWriter(r.Stdout)
	// Interactive input shows each document as soon as it is done.
	flushEach := cfg.Path == input.Stdin

	var docs int
	runErr := pipeline.Pipe(ctx, input.NewLineReader(rc), model, pipeline.Options{
		BatchSize: cfg.BufferSize,
		Workers:   procs,
	}, func(d pipeline.Doc) error {
		if err := writeDoc(out, d); err != nil {
			return fmt.Errorf("%w: writing output: %w", input.ErrIO, err)
		}
		docs++
		bar.Add(1)
		if flushEach {
			if err := out.Flush(); err != nil {
				return fmt.Errorf("%w: writing output: %w", input.ErrIO, err)
			}
		}
		return nil
	})
	flushErr := out.Flush()

	if runErr != nil {
		logger.Debug("run failed", "documents", docs, "error", runErr)
		return errors.Join(classify(runErr), flushErr)
	}
	if flushErr != nil {
		return fmt.Errorf("%w: writing output: %w", input.ErrIO, flushErr)
	}
	bar.Finish()
	logger.Info("done", "documents", docs)
	return nil
}

// ResolveDevice maps a GPU policy to an execution device. A failed probe is
// fatal only for GPURequire.
func (r *Runner) ResolveDevice(policy config.GPUPolicy) (inference.Device, error) {
	switch policy {
	case config.GPUPrefer, config.GPURequire:
		err := r.probe()
		if err == nil {
			return inference.CUDA, nil
		}
		if policy == config.GPURequire {
			return inference.CPU, fmt.Errorf("%w: %w: %w", ErrPipeline, sentsplit.ErrGPUUnavailable, err)
		}
		r.logger().Debug("GPU unavailable, using CPU", "error", err)
		return inference.CPU, nil
	default:
		return inference.CPU, nil
	}
}

// EffectiveProcesses returns the worker count: n when it is not -1,
// otherwise 1 on a GPU and numCPU on the CPU.
func EffectiveProcesses(n int, device inference.Device, numCPU int) int {
	if n != -1 {
		return n
	}
	if device == inference.CUDA {
		return 1
	}
	return max(numCPU, 1)
}

// intraOpThreads splits the CPU between pooled sessions.
func intraOpThreads(device inference.Device, procs, numCPU int) int {
	if device != inference.CPU || procs <= 0 {
		return 0
	}
	return max(numCPU/procs, 1)
}

func writeDoc(w *bufio.Writer, d pipeline.Doc) error {
	for _, s := range d.Sents {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if _, err := w.WriteString(text); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// classify leaves input and cancellation errors alone and wraps the rest in
// ErrPipeline.
func classify(err error) error {
	if errors.Is(err, input.ErrIO) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPipeline, err)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) models(cfg config.Config) ModelLoader {
	if r.Models != nil {
		return r.Models
	}
	return models.Registry{Dir: cfg.ModelDir, Logger: r.logger()}
}

func (r *Runner) probe() error {
	if r.ProbeGPU != nil {
		return r.ProbeGPU()
	}
	return inference.ProbeCUDA()
}

func (r *Runner) numCPU() int {
	if r.NumCPU != nil {
		return r.NumCPU()
	}
	return runtime.NumCPU()
}
