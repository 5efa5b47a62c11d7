package tokenizer

import (
	"unicode"
	"unicode/utf8"
)

const sentencePieceSpace = '▁' // U+2581 LOWER ONE EIGHTH BLOCK

// normalized is the tokenizer view of a text. For every rune it records the
// byte range of the source text it stands for, so token positions can be
// mapped back onto the caller's string.
type normalized struct {
	runes []rune
	start []int
	end   []int
}

func (n *normalized) push(r rune, start, end int) {
	n.runes = append(n.runes, r)
	n.start = append(n.start, start)
	n.end = append(n.end, end)
}

// normalize prepares text for tokenization following XLM-RoBERTa conventions:
// a dummy ▁ prefix, every whitespace run collapsed into one ▁, and
// trailing whitespace dropped. A ▁ covers the whitespace run it replaced;
// the dummy prefix of text that starts with a non-space is zero-width.
func normalize(text string) normalized {
	var n normalized
	if text == "" {
		return n
	}

	spaceStart := 0 // start of the pending whitespace run, -1 if none
	pending := true // dummy prefix before the first non-space

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if !pending {
				pending = true
				spaceStart = i
			}
			i += size
			continue
		}
		if pending {
			n.push(sentencePieceSpace, spaceStart, i)
			pending = false
		}
		n.push(r, i, i+size)
		i += size
	}

	return n
}

func (n normalized) String() string {
	return string(n.runes)
}
