package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Special tokens for BERT-style uncased vocabularies.
const (
	tokenCLS      = "[CLS]"
	tokenSEP      = "[SEP]"
	tokenPAD      = "[PAD]"
	tokenUNK      = "[UNK]"
	subwordPrefix = "##"
)

// PairTokenizer implements WordPiece tokenization of (query, document) pairs
// for the cross-encoder: [CLS] query [SEP] document [SEP], padded to a fixed
// length. When the pair is too long the document side is truncated first.
type PairTokenizer struct {
	vocab  map[string]int
	clsID  int
	sepID  int
	padID  int
	unkID  int
	maxLen int
}

// PairEncoding holds the tensor inputs for one encoded pair.
type PairEncoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// NewPairTokenizer loads a vocabulary file (token -> id JSON map).
func NewPairTokenizer(vocabPath string, maxLen int) (*PairTokenizer, error) {
	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("read vocab file: %w", err)
	}

	var vocab map[string]int
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocab JSON: %w", err)
	}

	t := &PairTokenizer{vocab: vocab, maxLen: maxLen}

	for _, special := range []struct {
		token string
		dst   *int
	}{
		{tokenCLS, &t.clsID},
		{tokenSEP, &t.sepID},
		{tokenPAD, &t.padID},
		{tokenUNK, &t.unkID},
	} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("vocab missing %s token", special.token)
		}
		*special.dst = id
	}

	return t, nil
}

// EncodePair encodes a (query, document) pair into fixed-length tensors.
func (t *PairTokenizer) EncodePair(query, document string) *PairEncoding {
	queryTokens := t.tokenize(query)
	docTokens := t.tokenize(document)

	// Budget: [CLS] + query + [SEP] + document + [SEP].
	budget := t.maxLen - 3
	if len(queryTokens) > budget {
		queryTokens = queryTokens[:budget]
	}
	if len(docTokens) > budget-len(queryTokens) {
		docTokens = docTokens[:budget-len(queryTokens)]
	}

	enc := &PairEncoding{
		InputIDs:      make([]int64, t.maxLen),
		AttentionMask: make([]int64, t.maxLen),
		TokenTypeIDs:  make([]int64, t.maxLen),
	}

	pos := 0
	put := func(id int, segment int64) {
		enc.InputIDs[pos] = int64(id)
		enc.AttentionMask[pos] = 1
		enc.TokenTypeIDs[pos] = segment
		pos++
	}

	put(t.clsID, 0)
	for _, token := range queryTokens {
		put(t.tokenToID(token), 0)
	}
	put(t.sepID, 0)
	for _, token := range docTokens {
		put(t.tokenToID(token), 1)
	}
	put(t.sepID, 1)

	for ; pos < t.maxLen; pos++ {
		enc.InputIDs[pos] = int64(t.padID)
	}

	return enc
}

// tokenize normalizes and WordPiece-tokenizes text (uncased).
func (t *PairTokenizer) tokenize(text string) []string {
	text = strings.ToLower(strings.TrimSpace(text))

	var tokens []string
	for _, word := range strings.Fields(text) {
		for _, piece := range splitPunctuation(word) {
			tokens = append(tokens, t.wordPiece(piece)...)
		}
	}
	return tokens
}

// wordPiece greedily matches the longest vocabulary entries, falling back to
// [UNK] per rune when nothing matches.
func (t *PairTokenizer) wordPiece(word string) []string {
	if word == "" {
		return nil
	}
	if _, ok := t.vocab[word]; ok {
		return []string{word}
	}

	var tokens []string
	runes := []rune(word)
	start := 0

	for start < len(runes) {
		end := len(runes)
		matched := ""
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = subwordPrefix + candidate
			}
			if _, ok := t.vocab[candidate]; ok {
				matched = candidate
				break
			}
			end--
		}

		if matched == "" {
			tokens = append(tokens, tokenUNK)
			start++
			continue
		}
		tokens = append(tokens, matched)
		start = end
	}

	return tokens
}

// splitPunctuation separates punctuation runes into standalone tokens.
func splitPunctuation(word string) []string {
	var pieces []string
	var current strings.Builder

	for _, r := range word {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			if current.Len() > 0 {
				pieces = append(pieces, current.String())
				current.Reset()
			}
			pieces = append(pieces, string(r))
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// tokenToID converts a token to its vocabulary ID.
func (t *PairTokenizer) tokenToID(token string) int {
	if id, ok := t.vocab[token]; ok {
		return id
	}
	return t.unkID
}

// MaxLength returns the fixed sequence length.
func (t *PairTokenizer) MaxLength() int {
	return t.maxLen
}
