// Package textutil holds the tokenizer shared by the local embedder,
// the in-memory index and the summarizer.
package textutil

import (
	"math"
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	stopwords  = buildStopwords()
)

// Tokens lowercases text and returns its word tokens.
func Tokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// ContentTokens is Tokens without stopwords.
func ContentTokens(text string) []string {
	raw := Tokens(text)
	out := raw[:0]
	for _, t := range raw {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// Ochiai returns |A∩B| / sqrt(|A||B|) between the query set and the tokens of text.
func Ochiai(query map[string]struct{}, text string) float64 {
	doc := TokenSet(text)
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	inter := 0
	for t := range doc {
		if _, ok := query[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(query))*float64(len(doc)))
}

// Sentences splits text on terminal punctuation. Trailing text without a
// terminator is kept as the last sentence.
func Sentences(text string) []string {
	var out []string
	rest := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		rest = loc[1]
	}
	if tail := strings.TrimSpace(text[rest:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func IsStopword(t string) bool {
	_, ok := stopwords[t]
	return ok
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "when", "where", "why", "does", "did", "do",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
