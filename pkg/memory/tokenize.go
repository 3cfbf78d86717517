package memory

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// minTokenRunes is the shortest query token that takes part in scoring.
const minTokenRunes = 3

// maxSummaryRunes caps the derived summary.
const maxSummaryRunes = 240

var (
	tokenizer = unicodetok.NewUnicodeTokenizer()
	lower     = lowercase.NewLowerCaseFilter()
)

// tokenize splits text on unicode word boundaries, lowercases the terms and
// drops tokens shorter than minTokenRunes. Duplicates are removed; order of
// first appearance is kept.
func tokenize(text string) []string {
	stream := lower.Filter(tokenizer.Tokenize([]byte(text)))
	seen := make(map[string]bool, len(stream))
	var out []string
	for _, tok := range stream {
		term := string(tok.Term)
		if utf8.RuneCountInString(term) < minTokenRunes || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

// hashtags returns the lowercased #words found in text.
func hashtags(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		if !strings.HasPrefix(f, "#") {
			continue
		}
		tag := strings.TrimFunc(f[1:], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
		})
		if tag != "" {
			out = append(out, strings.ToLower(tag))
		}
	}
	return out
}

// summarize returns the first sentence of text, capped at maxSummaryRunes.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	end := len(text)
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if r == '\n' || next == len(text) || unicode.IsSpace(rune(text[next])) {
			end = next
			if r == '\n' {
				end = i
			}
			break
		}
	}
	s := strings.TrimSpace(text[:end])
	if utf8.RuneCountInString(s) > maxSummaryRunes {
		s = string([]rune(s)[:maxSummaryRunes])
	}
	return s
}
