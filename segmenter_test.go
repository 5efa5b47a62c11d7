package sentsplit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-sentsplit/inference"
	"github.com/jamesainslie/go-sentsplit/internal/spm"
	"github.com/jamesainslie/go-sentsplit/tokenizer"
)

const (
	testModelPath     = "testdata/model_optimized.onnx"
	testTokenizerPath = "testdata/sentencepiece.bpe.model"
)

// skipIfNoModel skips the test if the ONNX model or tokenizer is not available.
func skipIfNoModel(t *testing.T) {
	t.Helper()
	for _, p := range []string{testModelPath, testTokenizerPath} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("Skipping: model file not available at %s", p)
		}
	}
}

// periodRunner scores every "." token as a boundary.
type periodRunner struct {
	periodID int64
	calls    int
	maxLen   int
}

func (r *periodRunner) Infer(ctx context.Context, inputIDs, _ []int64) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.calls++
	r.maxLen = max(r.maxLen, len(inputIDs))
	logits := make([]float32, len(inputIDs))
	for i, id := range inputIDs {
		logits[i] = -10
		if id == r.periodID {
			logits[i] = 10
		}
	}
	return logits, nil
}

func (r *periodRunner) Close() error { return nil }

func testTokenizer(t *testing.T) *tokenizer.Tokenizer {
	t.Helper()
	tok, err := tokenizer.FromModel(&spm.Model{
		Pieces: []spm.Piece{
			{Text: "<unk>", Type: spm.PieceUnknown},
			{Text: "<s>", Type: spm.PieceControl},
			{Text: "</s>", Type: spm.PieceControl},
			{Text: "▁Hello", Score: -2},
			{Text: "▁world", Score: -2},
			{Text: ".", Score: -1},
			{Text: "▁Bye", Score: -2},
			{Text: "▁a", Score: -2},
		},
		Trainer: spm.TrainerSpec{ModelType: spm.ModelUnigram},
	})
	require.NoError(t, err)
	return tok
}

func newFakeSegmenter(t *testing.T) (*Segmenter, *periodRunner) {
	t.Helper()
	runner := &periodRunner{periodID: 6} // SP index 5 -> HF id 6
	pool, err := inference.NewPoolFunc(1, func() (inference.Runner, error) {
		return runner, nil
	})
	require.NoError(t, err)

	cfg := defaultConfig()
	seg := newSegmenter(testTokenizer(t), pool, cfg)
	t.Cleanup(func() { _ = seg.Close() })
	return seg, runner
}

func TestNew_ModelNotFound(t *testing.T) {
	_, err := New("nonexistent/model.onnx", testTokenizerPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestNew_TokenizerNotFound(t *testing.T) {
	tmpModel := filepath.Join(t.TempDir(), "fake_model.onnx")
	require.NoError(t, os.WriteFile(tmpModel, nil, 0o600))

	_, err := New(tmpModel, "nonexistent/tokenizer.model")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenizerFailed)
}

func TestNew_WithOptions(t *testing.T) {
	skipIfNoModel(t)

	seg, err := New(testModelPath, testTokenizerPath,
		WithThreshold(0.5),
		WithPoolSize(2),
	)
	require.NoError(t, err)
	defer func() { _ = seg.Close() }()

	assert.Equal(t, float32(0.5), seg.threshold)
	assert.Equal(t, 2, seg.pool.Size())
}

func TestWithThreshold_IgnoresOutOfRange(t *testing.T) {
	cfg := defaultConfig()
	WithThreshold(0)(&cfg)
	WithThreshold(1.5)(&cfg)
	assert.Equal(t, float32(DefaultThreshold), cfg.threshold)
}

func TestSegmenter_Sentences(t *testing.T) {
	seg, _ := newFakeSegmenter(t)

	text := "Hello world. Bye."
	spans, err := seg.Sentences(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []Span{
		{Start: 0, End: 12, Text: "Hello world."},
		{Start: 12, End: 17, Text: " Bye."},
	}, spans)
}

func TestSegmenter_Segment_NoBoundary(t *testing.T) {
	seg, _ := newFakeSegmenter(t)

	got, err := seg.Segment(context.Background(), "Hello world")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello world"}, got)
}

func TestSegmenter_Segment_Empty(t *testing.T) {
	seg, runner := newFakeSegmenter(t)

	for _, text := range []string{"", "   \t"} {
		got, err := seg.Segment(context.Background(), text)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Zero(t, runner.calls)
}

func TestSegmenter_LongTextIsChunked(t *testing.T) {
	seg, runner := newFakeSegmenter(t)

	// 400 sentences of two tokens each: "▁a" "."
	var text string
	for i := 0; i < 400; i++ {
		text += " a."
	}

	spans, err := seg.Sentences(context.Background(), text)
	require.NoError(t, err)

	assert.Len(t, spans, 400)
	assert.Greater(t, runner.calls, 1)
	assert.LessOrEqual(t, runner.maxLen, maxSeqLen)
}

func TestSegmenter_Sentences_ContextCancelled(t *testing.T) {
	seg, _ := newFakeSegmenter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seg.Sentences(ctx, "Hello world.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSegmenter_RealModel(t *testing.T) {
	skipIfNoModel(t)

	seg, err := New(testModelPath, testTokenizerPath)
	require.NoError(t, err)
	defer func() { _ = seg.Close() }()

	text := "Hello world. How are you? I am fine."
	sentences, err := seg.Segment(context.Background(), text)
	require.NoError(t, err)

	t.Logf("Segment(%q) returned %d sentences: %v", text, len(sentences), sentences)
	assert.NotEmpty(t, sentences)
}

func TestSegmenter_Close(t *testing.T) {
	seg, _ := newFakeSegmenter(t)

	require.NoError(t, seg.Close())
	assert.NoError(t, seg.Close())
}

func TestSplitAt(t *testing.T) {
	text := "ab cd"
	assert.Equal(t, []Span{{0, 2, "ab"}, {2, 5, " cd"}}, splitAt(text, []int{2, 2, 9}))
	assert.Equal(t, []Span{{0, 5, "ab cd"}}, splitAt(text, nil))
	assert.Equal(t, []Span{{0, 5, "ab cd"}}, splitAt(text, []int{5}))
}

func TestSigmoid(t *testing.T) {
	tests := []struct {
		input    float32
		expected float32
	}{
		{0.0, 0.5},
		{-10.0, 0.0},
		{10.0, 1.0},
		{-1.0, 0.2689},
		{1.0, 0.7311},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, sigmoid(tt.input), 0.001, "sigmoid(%f)", tt.input)
	}
}
