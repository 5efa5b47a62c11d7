package sentsplit

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultAbbreviations are the English abbreviations that do not end a
// sentence when followed by a period.
var DefaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc",
	"i.e", "e.g", "u.s", "u.k", "fig", "approx", "dept", "inc", "ltd",
	"co", "corp", "jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep",
	"sept", "oct", "nov", "dec", "gen", "gov", "sen", "rep", "rev", "mt",
}

// RuleSegmenter splits text at terminal punctuation followed by whitespace
// or the end of the text. A period that closes a known abbreviation does
// not end the sentence. It is safe for concurrent use.
type RuleSegmenter struct {
	abbreviations map[string]struct{}
}

var _ Model = (*RuleSegmenter)(nil)

// RuleOption configures a RuleSegmenter.
type RuleOption func(*RuleSegmenter)

// WithAbbreviations adds abbreviations, with or without the final period,
// matched case-insensitively.
func WithAbbreviations(abbrevs ...string) RuleOption {
	return func(r *RuleSegmenter) {
		for _, a := range abbrevs {
			a = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(a), "."))
			if a != "" {
				r.abbreviations[a] = struct{}{}
			}
		}
	}
}

// NewRuleSegmenter returns a segmenter seeded with DefaultAbbreviations.
func NewRuleSegmenter(opts ...RuleOption) *RuleSegmenter {
	r := &RuleSegmenter{abbreviations: make(map[string]struct{})}
	WithAbbreviations(DefaultAbbreviations...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sentences splits text into sentence spans. Spans start at the first
// non-space rune of a sentence and end after its closing punctuation.
func (r *RuleSegmenter) Sentences(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var spans []Span
	start := skipSpace(text, 0)

	for i := start; i < len(text); {
		c, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !isTerminal(c) {
			continue
		}

		// Absorb runs like "?!" and closers like .") so they stay with the sentence.
		end := i
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if !isTerminal(next) && !isCloser(next) {
				break
			}
			end += n
		}

		if end < len(text) && !isFullWidthTerminal(c) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}
		if c == '.' && end == i && r.isAbbreviation(text[start:i-size]) {
			continue
		}

		spans = append(spans, Span{Start: start, End: end, Text: text[start:end]})
		start = skipSpace(text, end)
		i = start
	}

	if start < len(text) {
		if rest := strings.TrimRightFunc(text[start:], unicode.IsSpace); rest != "" {
			spans = append(spans, Span{Start: start, End: start + len(rest), Text: rest})
		}
	}

	return spans, nil
}

// Segment splits text into sentences.
func (r *RuleSegmenter) Segment(ctx context.Context, text string) ([]string, error) {
	spans, err := r.Sentences(ctx, text)
	if err != nil {
		return nil, err
	}
	return texts(spans), nil
}

// Close is a no-op.
func (r *RuleSegmenter) Close() error { return nil }

// isAbbreviation reports whether the word ending prefix is a known
// abbreviation. prefix excludes the period being tested.
func (r *RuleSegmenter) isAbbreviation(prefix string) bool {
	word := prefix
	if i := strings.LastIndexFunc(prefix, unicode.IsSpace); i >= 0 {
		word = prefix[i+1:]
	}
	word = strings.TrimLeft(word, "\"'([{“‘")
	if word == "" {
		return false
	}
	_, ok := r.abbreviations[strings.ToLower(word)]
	return ok
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		c, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(c) {
			break
		}
		i += size
	}
	return i
}

func isTerminal(c rune) bool {
	switch c {
	case '.', '!', '?', '…', '‼', '⁇', '⁈', '⁉':
		return true
	}
	return isFullWidthTerminal(c)
}

// isFullWidthTerminal covers CJK punctuation, which ends a sentence without
// trailing whitespace.
func isFullWidthTerminal(c rune) bool {
	switch c {
	case '。', '！', '？', '｡':
		return true
	}
	return false
}

func isCloser(c rune) bool {
	switch c {
	case '"', '\'', ')', ']', '}', '”', '’', '»', '」', '』', '）':
		return true
	}
	return false
}
