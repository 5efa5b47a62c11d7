package sentsplit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/jamesainslie/go-sentsplit/inference"
	"github.com/jamesainslie/go-sentsplit/tokenizer"
)

const (
	// maxSeqLen is the maximum sequence length supported by the model.
	// The model supports positions 0-513, so max is 514 tokens.
	// We use 512 to leave margin for safety.
	maxSeqLen = 512

	// chunkLen is the number of text tokens per chunk; each chunk is
	// wrapped in <s> ... </s>.
	chunkLen = maxSeqLen - 2

	// chunkOverlap is the number of overlapping tokens between chunks.
	// This ensures boundary detection works properly at chunk boundaries.
	chunkOverlap = 64
)

// Segmenter detects sentence boundaries using wtpsplit/SaT ONNX models.
// It is safe for concurrent use.
type Segmenter struct {
	tokenizer *tokenizer.Tokenizer
	pool      *inference.Pool
	threshold float32
	logger    *slog.Logger
}

var _ Model = (*Segmenter)(nil)

// New creates a Segmenter with the specified model files.
func New(modelPath, tokenizerPath string, opts ...Option) (*Segmenter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("checking model file: %w", err)
	}

	tok, err := tokenizer.New(tokenizerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTokenizerFailed, tokenizerPath)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenizerFailed, err)
	}

	pool, err := inference.NewPool(modelPath, cfg.poolSize, inference.SessionOptions{
		Device:         cfg.device,
		IntraOpThreads: cfg.intraOpThreads,
	})
	if err != nil {
		_ = tok.Close()
		if cfg.device == inference.CUDA {
			return nil, fmt.Errorf("%w: %w", ErrGPUUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	cfg.logger.Debug("segmenter ready",
		"model", modelPath,
		"device", cfg.device.String(),
		"pool_size", pool.Size(),
		"threshold", cfg.threshold,
	)

	return newSegmenter(tok, pool, cfg), nil
}

func newSegmenter(tok *tokenizer.Tokenizer, pool *inference.Pool, cfg config) *Segmenter {
	return &Segmenter{
		tokenizer: tok,
		pool:      pool,
		threshold: cfg.threshold,
		logger:    cfg.logger,
	}
}

// Sentences splits text into sentence spans.
func (s *Segmenter) Sentences(ctx context.Context, text string) ([]Span, error) {
	tokens := s.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	logits, err := s.getLogits(ctx, tokens)
	if err != nil {
		return nil, err
	}

	var boundaries []int
	for i, logit := range logits {
		if sigmoid(logit) > s.threshold {
			boundaries = append(boundaries, tokens[i].End)
		}
	}

	return splitAt(text, boundaries), nil
}

// Segment splits text into sentences.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]string, error) {
	spans, err := s.Sentences(ctx, text)
	if err != nil {
		return nil, err
	}
	return texts(spans), nil
}

// getLogits returns one logit per token, chunking if necessary.
func (s *Segmenter) getLogits(ctx context.Context, tokens []tokenizer.TokenInfo) ([]float32, error) {
	session, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(session)

	if len(tokens) <= chunkLen {
		return s.inferChunk(ctx, session, tokens)
	}

	// Process in overlapping chunks
	logits := make([]float32, len(tokens))
	counts := make([]int, len(tokens)) // how many chunks covered each position

	stride := chunkLen - chunkOverlap
	for start := 0; start < len(tokens); start += stride {
		end := min(start+chunkLen, len(tokens))

		chunkLogits, err := s.inferChunk(ctx, session, tokens[start:end])
		if err != nil {
			return nil, err
		}

		for i, logit := range chunkLogits {
			logits[start+i] += logit
			counts[start+i]++
		}

		if end >= len(tokens) {
			break
		}
	}

	// Average logits in overlapping regions
	for i := range logits {
		if counts[i] > 1 {
			logits[i] /= float32(counts[i])
		}
	}

	return logits, nil
}

// inferChunk runs inference on one chunk wrapped in <s> ... </s> and
// returns the logits of the text tokens only.
func (s *Segmenter) inferChunk(ctx context.Context, session inference.Runner, tokens []tokenizer.TokenInfo) ([]float32, error) {
	n := len(tokens) + 2
	inputIDs := make([]int64, 0, n)
	attentionMask := make([]int64, n)

	inputIDs = append(inputIDs, int64(s.tokenizer.BOSID()))
	for _, t := range tokens {
		inputIDs = append(inputIDs, int64(t.ID))
	}
	inputIDs = append(inputIDs, int64(s.tokenizer.EOSID()))
	for i := range attentionMask {
		attentionMask[i] = 1
	}

	logits, err := session.Infer(ctx, inputIDs, attentionMask)
	if err != nil {
		return nil, err
	}
	if len(logits) != n {
		return nil, fmt.Errorf("%w: got %d logits for %d tokens", ErrInvalidModel, len(logits), n)
	}
	return logits[1 : n-1], nil
}

// Close releases all resources.
func (s *Segmenter) Close() error {
	var errs []error

	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.tokenizer != nil {
		if err := s.tokenizer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}
