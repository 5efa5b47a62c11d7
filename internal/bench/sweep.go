package bench

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	sentsplit "github.com/jamesainslie/go-sentsplit"
)

// SweepResult holds metrics for one threshold value.
type SweepResult struct {
	Threshold float32
	Metrics   Metrics
}

// Loader builds a model that uses threshold.
type Loader func(threshold float32) (sentsplit.Model, error)

// SweepThresholds generates threshold values from min up to, but not
// including, max with the given step.
func SweepThresholds(min, max, step float32) []float32 {
	if step <= 0 {
		return nil
	}
	var thresholds []float32
	for i := 0; ; i++ {
		t := min + float32(i)*step
		if t >= max-step/1000 {
			break
		}
		thresholds = append(thresholds, t)
	}
	return thresholds
}

// Sweep evaluates multiple thresholds and returns results sorted by
// weighted score, best first.
func Sweep(ctx context.Context, docs []Document, load Loader, cfg Config, thresholds []float32) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(thresholds))

	for _, threshold := range thresholds {
		model, err := load(threshold)
		if err != nil {
			return nil, fmt.Errorf("threshold %.3f: %w", threshold, err)
		}
		m, err := EvaluateModel(ctx, model, docs, cfg)
		_ = model.Close()
		if err != nil {
			return nil, fmt.Errorf("threshold %.3f: %w", threshold, err)
		}

		results = append(results, SweepResult{Threshold: threshold, Metrics: m})
	}

	slices.SortStableFunc(results, func(a, b SweepResult) int {
		return cmp.Compare(b.Metrics.WeightedScore, a.Metrics.WeightedScore)
	})
	return results, nil
}
