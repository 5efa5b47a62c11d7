package sentsplit

import "context"

// Span is one sentence of a document. Start and End are byte offsets into
// the document text; Text is the document text between them and may carry
// surrounding whitespace.
type Span struct {
	Start int
	End   int
	Text  string
}

// Model splits a document into sentences.
type Model interface {
	// Sentences returns the sentences of text in order. Empty or
	// whitespace-only text yields no sentences.
	Sentences(ctx context.Context, text string) ([]Span, error)
	Close() error
}

// splitAt cuts text at the given ascending end offsets. Offsets that do not
// advance or fall outside text are ignored; text after the last offset
// becomes a final span.
func splitAt(text string, boundaries []int) []Span {
	var spans []Span
	start := 0
	for _, end := range boundaries {
		if end > start && end <= len(text) {
			spans = append(spans, Span{Start: start, End: end, Text: text[start:end]})
			start = end
		}
	}
	if start < len(text) {
		spans = append(spans, Span{Start: start, End: len(text), Text: text[start:]})
	}
	return spans
}

// texts returns the text of each span.
func texts(spans []Span) []string {
	if spans == nil {
		return nil
	}
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Text
	}
	return out
}
