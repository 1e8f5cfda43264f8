package infidex

import (
	"strings"

	snowballeng "github.com/kljensen/snowball/english"
)

// Normalizer is the pluggable text-normalization hook mentioned in spec §1
// ("full Unicode normalization beyond case-folding plus an optional
// pluggable normalizer" is the stated limit of what the core does itself).
// The engine always case-folds; a Normalizer may additionally fold accents,
// stem, or otherwise rewrite each whitespace-delimited word before
// tokenization.
type Normalizer func(word string) string

// IdentityNormalizer performs no additional normalization beyond the
// engine's own case-folding.
func IdentityNormalizer(word string) string { return word }

// SnowballNormalizer stems English words with the Snowball (Porter2)
// algorithm, the teacher's own stemming dependency (analyzer.go's
// stemmerFilter). Stemming itself is a spec Non-goal for the core pipeline,
// so this is wired as an opt-in Normalizer rather than applied by default.
func SnowballNormalizer(word string) string {
	return snowballeng.Stem(word, false)
}

// foldCase lowercases text the way the engine always does before handing it
// to the tokenizer, mirroring the teacher's lowercaseFilter.
func foldCase(text string) string {
	return strings.ToLower(text)
}
