package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	sentsplit "github.com/jamesainslie/go-sentsplit"
	"github.com/jamesainslie/go-sentsplit/inference"
	"github.com/jamesainslie/go-sentsplit/internal/bench"
	"github.com/jamesainslie/go-sentsplit/internal/config"
	"github.com/jamesainslie/go-sentsplit/internal/models"
)

type benchOptions struct {
	gold       string
	models     []string
	modelDir   string
	ortLibrary string
	threshold  float64
	tolerance  int
	wp, wr     float64
	sweep      bool
	sweepMin   float64
	sweepMax   float64
	sweepStep  float64
	poolSize   int
	logLevel   string
}

// NewBenchCommand returns the sentsplit-bench command, which scores models
// against a reference file in sentence-splitter's output format.
func NewBenchCommand(streams Streams, info BuildInfo) *cobra.Command {
	opts := benchOptions{}
	def := bench.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "sentsplit-bench --gold FILE [--model NAME]...",
		Short: "Score sentence models against a reference segmentation",
		Long: `sentsplit-bench reads a reference file with one sentence per line and a
blank line after every document, rebuilds each document, segments it with
every --model and reports boundary precision, recall and F1.`,
		Args:          usageArgs(cobra.NoArgs),
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBench(cmd.Context(), cmd.OutOrStdout(), streams.Err, opts)
		},
	}
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.Err)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", config.ErrInvalidArgument, err)
	})

	f := cmd.Flags()
	f.StringVar(&opts.gold, "gold", "", "reference file (required)")
	f.StringSliceVar(&opts.models, "model", []string{config.DefaultModelName}, "models to compare")
	f.StringVar(&opts.modelDir, config.KeyModelDir, config.DefaultModelDir(), "directory searched for models by name")
	f.StringVar(&opts.ortLibrary, config.KeyORTLibrary, "", "path to the ONNX Runtime shared library")
	f.Float64Var(&opts.threshold, config.KeyThreshold, 0, "boundary threshold for SaT models (default: the model's)")
	f.IntVar(&opts.tolerance, "tolerance", def.Tolerance, "byte tolerance for boundary matching")
	f.Float64Var(&opts.wp, "wp", def.PrecisionWeight, "precision weight")
	f.Float64Var(&opts.wr, "wr", def.RecallWeight, "recall weight")
	f.BoolVar(&opts.sweep, "sweep", false, "sweep thresholds instead of using one")
	f.Float64Var(&opts.sweepMin, "sweep-min", 0.01, "sweep minimum threshold")
	f.Float64Var(&opts.sweepMax, "sweep-max", 0.20, "sweep maximum threshold")
	f.Float64Var(&opts.sweepStep, "sweep-step", 0.01, "sweep step size")
	f.IntVar(&opts.poolSize, "pool-size", runtime.NumCPU(), "ONNX sessions per SaT model")
	f.StringVar(&opts.logLevel, config.KeyLogLevel, config.DefaultLogLevel, "log level: debug, info, warn or error")
	f.SortFlags = false
	_ = cmd.MarkFlagRequired("gold")

	return cmd
}

// ExecuteBench runs the bench command with args and returns the exit code.
func ExecuteBench(ctx context.Context, args []string, streams Streams, info BuildInfo) int {
	cmd := NewBenchCommand(streams, info)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalidArgument), isRequiredFlagErr(err):
		_, _ = fmt.Fprintf(streams.Err, "Error: %v\n\n%s", err, cmd.UsageString())
		return ExitUsage
	default:
		_, _ = fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return ExitError
	}
}

func isRequiredFlagErr(err error) bool {
	return strings.Contains(err.Error(), "required flag")
}

func runBench(ctx context.Context, out, errOut io.Writer, opts benchOptions) error {
	if opts.sweep && (opts.sweepStep <= 0 || opts.sweepMax <= opts.sweepMin) {
		return fmt.Errorf("%w: sweep needs sweep-step > 0 and sweep-max > sweep-min", config.ErrInvalidArgument)
	}
	if opts.ortLibrary != "" {
		inference.SetLibraryPath(opts.ortLibrary)
	}

	docs, err := bench.LoadGold(opts.gold)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Loaded %d documents from %s\n\n", len(docs), opts.gold)

	cfg := bench.Config{
		Tolerance:       opts.tolerance,
		PrecisionWeight: opts.wp,
		RecallWeight:    opts.wr,
	}
	registry := models.Registry{Dir: opts.modelDir, Logger: newLogger(errOut, opts.logLevel)}
	loader := func(name string) bench.Loader {
		return func(threshold float32) (sentsplit.Model, error) {
			return registry.Load(name, models.LoadOptions{PoolSize: opts.poolSize, Threshold: threshold})
		}
	}

	_, _ = fmt.Fprintf(out, "Model Comparison (wp=%.1f, wr=%.1f)\n", cfg.PrecisionWeight, cfg.RecallWeight)
	_, _ = fmt.Fprintln(out, strings.Repeat("-", 72))
	_, _ = fmt.Fprintf(out, "%-30s %-8s %-8s %-8s %-8s %-8s\n", "Model", "Thresh", "Prec", "Rec", "F1", "Weighted")

	var failed []error
	for _, name := range opts.models {
		threshold := float32(opts.threshold)
		var m bench.Metrics

		if opts.sweep {
			thresholds := bench.SweepThresholds(float32(opts.sweepMin), float32(opts.sweepMax), float32(opts.sweepStep))
			results, err := bench.Sweep(ctx, docs, loader(name), cfg, thresholds)
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", name, err))
				continue
			}
			if len(results) > 0 {
				threshold, m = results[0].Threshold, results[0].Metrics
			}
		} else {
			model, err := loader(name)(threshold)
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", name, err))
				continue
			}
			m, err = bench.EvaluateModel(ctx, model, docs, cfg)
			_ = model.Close()
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", name, err))
				continue
			}
		}

		_, _ = fmt.Fprintf(out, "%-30s %-8.3f %-8.2f %-8.2f %-8.2f %-8.2f\n",
			name, threshold, m.Precision, m.Recall, m.F1, m.WeightedScore)
	}
	_, _ = fmt.Fprintln(out, strings.Repeat("-", 72))

	return errors.Join(failed...)
}
