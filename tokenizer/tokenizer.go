// Package tokenizer implements the XLM-RoBERTa SentencePiece unigram
// tokenizer used by SaT models.
package tokenizer

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/jamesainslie/go-sentsplit/internal/spm"
)

// unkPenalty is subtracted from the lowest piece score to score <unk>,
// matching SentencePiece's unigram model.
const unkPenalty = 10.0

// Tokenizer implements XLM-RoBERTa compatible SentencePiece Unigram tokenization.
//
// Note: Token IDs are remapped from SentencePiece indices to match HuggingFace
// XLM-RoBERTa convention:
//   - HF[0] = <s>   (SP[1])
//   - HF[1] = <pad> (not in SentencePiece)
//   - HF[2] = </s>  (SP[2])
//   - HF[3] = <unk> (SP[0])
//   - HF[n+1] = SP[n] for n >= 3 (normal tokens shifted by 1)
type Tokenizer struct {
	pieces   map[string]int32   // token string -> SentencePiece index
	scores   map[string]float32 // matchable pieces only
	size     int
	unkScore float64

	// longest matchable piece, in runes
	maxPieceLen int
}

// TokenInfo represents a token with its position in the original text.
type TokenInfo struct {
	ID    int32
	Text  string
	Start int // byte offset in original text
	End   int // byte offset in original text
}

// New loads a tokenizer from a SentencePiece .model file.
func New(modelPath string) (*Tokenizer, error) {
	model, err := spm.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	return FromModel(model)
}

// FromModel builds a tokenizer from a decoded model.
func FromModel(model *spm.Model) (*Tokenizer, error) {
	if model.Trainer.ModelType != spm.ModelUnigram {
		return nil, fmt.Errorf("unsupported model type %s", model.Trainer.ModelType)
	}
	if len(model.Pieces) < 3 {
		return nil, fmt.Errorf("model has %d pieces, need at least <unk>, <s>, </s>", len(model.Pieces))
	}

	t := &Tokenizer{
		pieces: make(map[string]int32, len(model.Pieces)),
		scores: make(map[string]float32, len(model.Pieces)),
		size:   len(model.Pieces),
	}

	minScore := math.Inf(1)
	for i, piece := range model.Pieces {
		t.pieces[piece.Text] = int32(i)

		switch piece.Type {
		case spm.PieceControl, spm.PieceUnknown, spm.PieceUnused:
			continue
		}
		t.scores[piece.Text] = piece.Score
		if s := float64(piece.Score); s < minScore {
			minScore = s
		}
		if n := utf8.RuneCountInString(piece.Text); n > t.maxPieceLen {
			t.maxPieceLen = n
		}
	}
	if math.IsInf(minScore, 1) {
		minScore = 0
	}
	t.unkScore = minScore - unkPenalty

	return t, nil
}

// spIndexToHFID converts a SentencePiece index to a HuggingFace XLM-RoBERTa token ID.
func spIndexToHFID(spIndex int32) int32 {
	switch spIndex {
	case 0: // <unk>
		return 3
	case 1: // <s>
		return 0
	case 2: // </s>
		return 2
	default: // normal tokens: shift by 1
		return spIndex + 1
	}
}

// Close releases tokenizer resources.
func (t *Tokenizer) Close() error {
	return nil
}

// VocabSize returns the HuggingFace vocabulary size: SentencePiece pieces
// plus the inserted <pad> and <mask> tokens.
func (t *Tokenizer) VocabSize() int {
	return t.size + 2
}

// BOSID returns the beginning-of-sentence token ID.
func (t *Tokenizer) BOSID() int32 { return 0 }

// PadID returns the padding token ID.
func (t *Tokenizer) PadID() int32 { return 1 }

// EOSID returns the end-of-sentence token ID.
func (t *Tokenizer) EOSID() int32 { return 2 }

// UnkID returns the unknown token ID.
func (t *Tokenizer) UnkID() int32 { return 3 }
