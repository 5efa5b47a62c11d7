// Package spm decodes SentencePiece model files (ModelProto) without
// generated code, reading only the fields the tokenizer needs.
package spm

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// PieceType mirrors ModelProto.SentencePiece.Type.
type PieceType int32

const (
	PieceNormal      PieceType = 1
	PieceUnknown     PieceType = 2
	PieceControl     PieceType = 3
	PieceUserDefined PieceType = 4
	PieceUnused      PieceType = 5
	PieceByte        PieceType = 6
)

// ModelType mirrors TrainerSpec.ModelType.
type ModelType int32

const (
	ModelUnigram ModelType = 1
	ModelBPE     ModelType = 2
	ModelWord    ModelType = 3
	ModelChar    ModelType = 4
)

func (t ModelType) String() string {
	switch t {
	case ModelUnigram:
		return "UNIGRAM"
	case ModelBPE:
		return "BPE"
	case ModelWord:
		return "WORD"
	case ModelChar:
		return "CHAR"
	default:
		return fmt.Sprintf("ModelType(%d)", int32(t))
	}
}

// Field numbers from sentencepiece_model.proto.
const (
	fieldModelPieces     protowire.Number = 1
	fieldModelTrainer    protowire.Number = 2
	fieldModelNormalizer protowire.Number = 3

	fieldPieceText  protowire.Number = 1
	fieldPieceScore protowire.Number = 2
	fieldPieceType  protowire.Number = 3

	fieldTrainerModelType protowire.Number = 3
	fieldTrainerVocabSize protowire.Number = 4

	fieldNormalizerName        protowire.Number = 1
	fieldNormalizerDummyPrefix protowire.Number = 3
	fieldNormalizerExtraSpaces protowire.Number = 4
)

// ErrMalformed is returned when the input is not a valid ModelProto.
var ErrMalformed = errors.New("spm: malformed model")

// Piece is one vocabulary entry.
type Piece struct {
	Text  string
	Score float32
	Type  PieceType
}

// TrainerSpec holds the trainer fields used at inference time.
type TrainerSpec struct {
	ModelType ModelType
	VocabSize int32
}

// NormalizerSpec holds the normalizer fields used at inference time.
type NormalizerSpec struct {
	Name                   string
	AddDummyPrefix         bool
	RemoveExtraWhitespaces bool
}

// Model is a decoded SentencePiece model.
type Model struct {
	Pieces     []Piece
	Trainer    TrainerSpec
	Normalizer NormalizerSpec
}

// Load reads and decodes a .model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal decodes a ModelProto. Unknown fields are skipped.
func Unmarshal(b []byte) (*Model, error) {
	m := &Model{
		Trainer:    TrainerSpec{ModelType: ModelUnigram},
		Normalizer: NormalizerSpec{AddDummyPrefix: true, RemoveExtraWhitespaces: true},
	}

	err := eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		switch num {
		case fieldModelPieces:
			p, err := unmarshalPiece(v)
			if err != nil {
				return 0, fmt.Errorf("piece %d: %w", len(m.Pieces), err)
			}
			m.Pieces = append(m.Pieces, p)
		case fieldModelTrainer:
			if err := unmarshalTrainer(v, &m.Trainer); err != nil {
				return 0, fmt.Errorf("trainer_spec: %w", err)
			}
		case fieldModelNormalizer:
			if err := unmarshalNormalizer(v, &m.Normalizer); err != nil {
				return 0, fmt.Errorf("normalizer_spec: %w", err)
			}
		}
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func unmarshalPiece(b []byte) (Piece, error) {
	p := Piece{Type: PieceNormal}
	err := eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldPieceText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			p.Text = v
			return n, nil
		case num == fieldPieceScore && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			p.Score = math.Float32frombits(v)
			return n, nil
		case num == fieldPieceType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Type = PieceType(int32(v))
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return p, err
}

func unmarshalTrainer(b []byte, t *TrainerSpec) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ == protowire.VarintType {
			switch num {
			case fieldTrainerModelType:
				v, n := protowire.ConsumeVarint(b)
				t.ModelType = ModelType(int32(v))
				return n, nil
			case fieldTrainerVocabSize:
				v, n := protowire.ConsumeVarint(b)
				t.VocabSize = int32(v)
				return n, nil
			}
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func unmarshalNormalizer(b []byte, s *NormalizerSpec) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldNormalizerName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.Name = v
			return n, nil
		case num == fieldNormalizerDummyPrefix && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.AddDummyPrefix = protowire.DecodeBool(v)
			return n, nil
		case num == fieldNormalizerExtraSpaces && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.RemoveExtraWhitespaces = protowire.DecodeBool(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// eachField walks the top-level fields of a message. fn receives the bytes
// following the tag and returns how many of them it consumed, or a
// negative protowire error code.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

// Marshal encodes m in the ModelProto wire format.
func Marshal(m *Model) []byte {
	var b []byte
	for _, p := range m.Pieces {
		var pb []byte
		pb = protowire.AppendTag(pb, fieldPieceText, protowire.BytesType)
		pb = protowire.AppendString(pb, p.Text)
		pb = protowire.AppendTag(pb, fieldPieceScore, protowire.Fixed32Type)
		pb = protowire.AppendFixed32(pb, math.Float32bits(p.Score))
		if p.Type != 0 && p.Type != PieceNormal {
			pb = protowire.AppendTag(pb, fieldPieceType, protowire.VarintType)
			pb = protowire.AppendVarint(pb, uint64(p.Type))
		}
		b = protowire.AppendTag(b, fieldModelPieces, protowire.BytesType)
		b = protowire.AppendBytes(b, pb)
	}

	var tb []byte
	tb = protowire.AppendTag(tb, fieldTrainerModelType, protowire.VarintType)
	tb = protowire.AppendVarint(tb, uint64(m.Trainer.ModelType))
	if m.Trainer.VocabSize > 0 {
		tb = protowire.AppendTag(tb, fieldTrainerVocabSize, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(m.Trainer.VocabSize))
	}
	b = protowire.AppendTag(b, fieldModelTrainer, protowire.BytesType)
	b = protowire.AppendBytes(b, tb)

	var nb []byte
	if m.Normalizer.Name != "" {
		nb = protowire.AppendTag(nb, fieldNormalizerName, protowire.BytesType)
		nb = protowire.AppendString(nb, m.Normalizer.Name)
	}
	nb = protowire.AppendTag(nb, fieldNormalizerDummyPrefix, protowire.VarintType)
	nb = protowire.AppendVarint(nb, protowire.EncodeBool(m.Normalizer.AddDummyPrefix))
	nb = protowire.AppendTag(nb, fieldNormalizerExtraSpaces, protowire.VarintType)
	nb = protowire.AppendVarint(nb, protowire.EncodeBool(m.Normalizer.RemoveExtraWhitespaces))
	b = protowire.AppendTag(b, fieldModelNormalizer, protowire.BytesType)
	b = protowire.AppendBytes(b, nb)

	return b
}
