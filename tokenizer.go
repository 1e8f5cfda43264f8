package infidex

import (
	"fmt"
	"strings"
	"unicode"
)

// Padding markers bracketing a padded token: reserved non-letter code
// points so they never collide with real input (spec §4.1).
const (
	startPad rune = '\x01'
	stopPad  rune = '\x02'
)

// Shingle is one tokenizer output unit: either a whole word or a
// fixed-width character n-gram, with the count of times it occurred and
// the token-ordinal position of its first occurrence.
type Shingle struct {
	Text        string
	Occurrences int
	Position    int
}

// TokenizerConfig mirrors the teacher's AnalyzerConfig shape (plain struct,
// DefaultXxx constructor) generalized to spec §4.1's n-gram tokenizer.
type TokenizerConfig struct {
	IndexSizes   []int // n-gram widths to emit, e.g. {2,3}
	StartPadSize int   // start-pad characters prepended per token
	StopPadSize  int   // stop-pad characters appended per token
	Delimiters   func(r rune) bool
}

// DefaultTokenizerConfig returns a bigram+trigram configuration with one
// character of padding on each side, splitting on anything that is not a
// letter or number.
func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{
		IndexSizes:   []int{2, 3},
		StartPadSize: 1,
		StopPadSize:  1,
		Delimiters: func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		},
	}
}

// Tokenizer turns normalized text into shingles per spec §4.1.
type Tokenizer struct {
	cfg TokenizerConfig
	max int
}

// NewTokenizer validates cfg and returns a ready Tokenizer.
func NewTokenizer(cfg TokenizerConfig) (*Tokenizer, error) {
	if len(cfg.IndexSizes) == 0 {
		return nil, fmt.Errorf("%w: tokenizer requires at least one index size", ErrInvalidArgument)
	}
	max := 0
	for _, s := range cfg.IndexSizes {
		if s <= 0 {
			return nil, fmt.Errorf("%w: tokenizer index size must be positive", ErrInvalidArgument)
		}
		if s > max {
			max = s
		}
	}
	if cfg.StartPadSize >= max || cfg.StopPadSize >= max {
		return nil, fmt.Errorf("%w: pad size must be smaller than the largest index size", ErrInvalidArgument)
	}
	if cfg.Delimiters == nil {
		cfg.Delimiters = DefaultTokenizerConfig().Delimiters
	}
	return &Tokenizer{cfg: cfg, max: max}, nil
}

// Tokenize splits text (already normalized/lowercased by the caller) into
// shingles. isSegmentContinuation suppresses start-padding on the first
// token, since segment 0 already padded the logical document start.
func (t *Tokenizer) Tokenize(text string, isSegmentContinuation bool) []Shingle {
	if len(text) == 0 {
		return nil
	}

	words := strings.FieldsFunc(text, t.cfg.Delimiters)
	if len(words) == 0 {
		return nil
	}

	var order []string
	index := make(map[string]int)
	var out []Shingle

	emit := func(text string, position int) {
		if i, ok := index[text]; ok {
			out[i].Occurrences++
			return
		}
		index[text] = len(out)
		order = append(order, text)
		out = append(out, Shingle{Text: text, Occurrences: 1, Position: position})
	}

	for position, word := range words {
		emit(word, position)

		startN := t.cfg.StartPadSize
		if isSegmentContinuation && position == 0 {
			startN = 0
		}
		padded := padToken(word, startN, t.cfg.StopPadSize)

		for _, width := range t.cfg.IndexSizes {
			if width > len(padded) {
				continue
			}
			for i := 0; i+width <= len(padded); i++ {
				gram := string(padded[i : i+width])
				if gram == word {
					// already counted once by the whole-word shingle above
					continue
				}
				emit(gram, position)
			}
		}
	}

	return out
}

func padToken(word string, startN, stopN int) []rune {
	runes := []rune(word)
	padded := make([]rune, 0, startN+len(runes)+stopN)
	for i := 0; i < startN; i++ {
		padded = append(padded, startPad)
	}
	padded = append(padded, runes...)
	for i := 0; i < stopN; i++ {
		padded = append(padded, stopPad)
	}
	return padded
}
