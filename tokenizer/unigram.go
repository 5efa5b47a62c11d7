package tokenizer

import "math"

// EncodeIDs returns HuggingFace-compatible token IDs for the input text.
func (t *Tokenizer) EncodeIDs(text string) []int32 {
	tokens := t.Encode(text)
	ids := make([]int32, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}
	return ids
}

// Encode tokenizes text with the Viterbi algorithm. Start and End of each
// token are byte offsets into text.
func (t *Tokenizer) Encode(text string) []TokenInfo {
	norm := normalize(text)
	n := len(norm.runes)
	if n == 0 {
		return nil
	}

	// best[i] = best log probability to tokenize runes[0:i]
	best := make([]float64, n+1)
	// parent[i] = start position of the token ending at position i
	parent := make([]int, n+1)
	// known[i] reports whether the token ending at i is in the vocabulary
	known := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		best[i] = math.Inf(-1)
		parent[i] = -1
	}

	for i := 1; i <= n; i++ {
		maxLen := min(t.maxPieceLen, i)

		for length := 1; length <= maxLen; length++ {
			j := i - length
			if math.IsInf(best[j], -1) {
				continue
			}
			score, ok := t.scores[string(norm.runes[j:i])]
			if !ok {
				continue
			}
			if candidate := best[j] + float64(score); candidate > best[i] {
				best[i] = candidate
				parent[i] = j
				known[i] = true
			}
		}

		// No piece ends here: fall back to a single-rune <unk>
		if parent[i] == -1 {
			best[i] = best[i-1] + t.unkScore
			parent[i] = i - 1
		}
	}

	var tokens []TokenInfo
	for pos := n; pos > 0; {
		start := parent[pos]
		piece := string(norm.runes[start:pos])

		spIndex := int32(0) // <unk>
		if known[pos] {
			spIndex = t.pieces[piece]
		}

		tokens = append(tokens, TokenInfo{
			ID:    spIndexToHFID(spIndex),
			Text:  piece,
			Start: norm.start[start],
			End:   norm.end[pos-1],
		})
		pos = start
	}

	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}

	return tokens
}
