// Package bench scores sentence models against reference segmentations.
package bench

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	sentsplit "github.com/jamesainslie/go-sentsplit"
)

// Document is one reference document: its text and the byte offsets where
// each sentence but the last one ends.
type Document struct {
	Text       string
	Boundaries []int
}

// ReadGold parses a reference file in sentence-splitter's output format:
// one sentence per line and a blank line after every document. Document
// text is rebuilt by joining its sentences with single spaces.
func ReadGold(r io.Reader) ([]Document, error) {
	var (
		docs  []Document
		sents []string
	)
	flush := func() {
		docs = append(docs, newDocument(sents))
		sents = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		sents = append(sents, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan gold: %w", err)
	}
	if len(sents) > 0 {
		flush()
	}
	return docs, nil
}

// LoadGold reads the reference file at path.
func LoadGold(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gold: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadGold(f)
}

func newDocument(sents []string) Document {
	var (
		b          strings.Builder
		boundaries []int
	)
	for i, s := range sents {
		if i > 0 {
			boundaries = append(boundaries, b.Len())
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return Document{Text: b.String(), Boundaries: boundaries}
}

// EvaluateModel segments every document with model and scores the
// predicted boundaries against the reference.
func EvaluateModel(ctx context.Context, model sentsplit.Model, docs []Document, cfg Config) (Metrics, error) {
	results := make([]Metrics, 0, len(docs))
	for i, doc := range docs {
		if doc.Text == "" {
			continue
		}
		spans, err := model.Sentences(ctx, doc.Text)
		if err != nil {
			return Metrics{}, fmt.Errorf("document %d: %w", i+1, err)
		}
		results = append(results, Evaluate(predicted(spans, len(doc.Text)), doc.Boundaries, cfg))
	}
	return Sum(results, cfg), nil
}

// predicted returns the span ends that fall strictly inside the text.
func predicted(spans []sentsplit.Span, textLen int) []int {
	var ends []int
	for _, s := range spans {
		if end := len(strings.TrimRightFunc(s.Text, unicode.IsSpace)) + s.Start; end < textLen {
			ends = append(ends, end)
		}
	}
	return ends
}
