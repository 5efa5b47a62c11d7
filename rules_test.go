package sentsplit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSegmenter_Sentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Span
	}{
		{
			name:  "simple sentences",
			input: "Hello world. How are you?",
			want: []Span{
				{Text: "Hello world.", Start: 0, End: 12},
				{Text: "How are you?", Start: 13, End: 25},
			},
		},
		{
			name:  "exclamation",
			input: "Wow! That's great.",
			want: []Span{
				{Text: "Wow!", Start: 0, End: 4},
				{Text: "That's great.", Start: 5, End: 18},
			},
		},
		{
			name:  "abbreviation Mr.",
			input: "Mr. Smith went home. He was tired.",
			want: []Span{
				{Text: "Mr. Smith went home.", Start: 0, End: 20},
				{Text: "He was tired.", Start: 21, End: 34},
			},
		},
		{
			name:  "dotted abbreviation",
			input: "Bring fruit, e.g. apples. Thanks.",
			want: []Span{
				{Text: "Bring fruit, e.g. apples.", Start: 0, End: 25},
				{Text: "Thanks.", Start: 26, End: 33},
			},
		},
		{
			name:  "decimal number",
			input: "Pi is 3.14 roughly. Yes.",
			want: []Span{
				{Text: "Pi is 3.14 roughly.", Start: 0, End: 19},
				{Text: "Yes.", Start: 20, End: 24},
			},
		},
		{
			name:  "closing quote stays with sentence",
			input: `He said "stop." Then he left.`,
			want: []Span{
				{Text: `He said "stop."`, Start: 0, End: 15},
				{Text: "Then he left.", Start: 16, End: 29},
			},
		},
		{
			name:  "punctuation run",
			input: "Really?! Yes...",
			want: []Span{
				{Text: "Really?!", Start: 0, End: 8},
				{Text: "Yes...", Start: 9, End: 15},
			},
		},
		{
			name:  "no terminal punctuation",
			input: "  no punctuation here  ",
			want: []Span{
				{Text: "no punctuation here", Start: 2, End: 21},
			},
		},
		{
			name:  "full-width punctuation",
			input: "你好。再见。",
			want: []Span{
				{Text: "你好。", Start: 0, End: 9},
				{Text: "再见。", Start: 9, End: 18},
			},
		},
		{
			name:  "whitespace only",
			input: " \t ",
			want:  nil,
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
	}

	seg := NewRuleSegmenter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := seg.Sentences(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleSegmenter_WithAbbreviations(t *testing.T) {
	ctx := context.Background()
	text := "See approx. Ch. 4 for details."

	got, err := NewRuleSegmenter().Segment(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, []string{"See approx. Ch.", "4 for details."}, got)

	got, err = NewRuleSegmenter(WithAbbreviations("Ch.", " ")).Segment(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, []string{text}, got)
}

func TestRuleSegmenter_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRuleSegmenter().Sentences(ctx, "Hello.")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRuleSegmenter_Close(t *testing.T) {
	assert.NoError(t, NewRuleSegmenter().Close())
}
