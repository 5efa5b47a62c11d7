package bench

import (
	"context"
	"errors"
	"testing"

	sentsplit "github.com/jamesainslie/go-sentsplit"
)

func TestSweepThresholds(t *testing.T) {
	thresholds := SweepThresholds(0.01, 0.1, 0.02)

	want := []float32{0.01, 0.03, 0.05, 0.07, 0.09}
	if len(thresholds) != len(want) {
		t.Errorf("got %d thresholds, want %d", len(thresholds), len(want))
		t.Logf("got: %v", thresholds)
		return
	}

	for i := range want {
		diff := thresholds[i] - want[i]
		if diff < -0.001 || diff > 0.001 {
			t.Errorf("threshold[%d] = %v, want %v", i, thresholds[i], want[i])
		}
	}

	if got := SweepThresholds(0.01, 0.2, 0.01); len(got) != 19 {
		t.Errorf("got %d thresholds for 0.01..0.2 step 0.01, want 19", len(got))
	}
	if got := SweepThresholds(0.1, 0.2, 0); got != nil {
		t.Errorf("zero step = %v, want nil", got)
	}
}

// thresholdModel only splits when its threshold is above 0.5, so sweeps
// have a clear winner.
type thresholdModel struct {
	threshold float32
	closed    *int
}

func (m thresholdModel) Sentences(ctx context.Context, text string) ([]sentsplit.Span, error) {
	if m.threshold > 0.5 {
		return sentsplit.NewRuleSegmenter().Sentences(ctx, text)
	}
	return []sentsplit.Span{{Start: 0, End: len(text), Text: text}}, nil
}

func (m thresholdModel) Close() error {
	*m.closed++
	return nil
}

func TestSweep(t *testing.T) {
	docs := []Document{newDocument([]string{"One here.", "Two here.", "Three."})}
	closed := 0
	load := func(threshold float32) (sentsplit.Model, error) {
		return thresholdModel{threshold: threshold, closed: &closed}, nil
	}

	results, err := Sweep(context.Background(), docs, load, DefaultConfig(), []float32{0.2, 0.7, 0.4})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Threshold != 0.7 {
		t.Errorf("best threshold = %v, want 0.7", results[0].Threshold)
	}
	if results[0].Metrics.F1 != 1 {
		t.Errorf("best F1 = %v, want 1", results[0].Metrics.F1)
	}
	if closed != 3 {
		t.Errorf("closed %d models, want 3", closed)
	}
}

func TestSweep_LoadError(t *testing.T) {
	loadErr := errors.New("no model")
	_, err := Sweep(context.Background(), nil, func(float32) (sentsplit.Model, error) {
		return nil, loadErr
	}, DefaultConfig(), []float32{0.1})

	if !errors.Is(err, loadErr) {
		t.Errorf("Sweep() error = %v, want %v", err, loadErr)
	}
}
