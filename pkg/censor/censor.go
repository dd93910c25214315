// Package censor rejects text containing banned words.
package censor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Word is a banned word. Pattern is a regexp matched against every word of the
// text; when it is empty the word must equal Text. A match equal to one of
// Exceptions is allowed.
type Word struct {
	Text       string   `toml:"text"`
	Pattern    string   `toml:"pattern"`
	Exceptions []string `toml:"exceptions"`

	re *regexp.Regexp
}

type Censor struct {
	banned []Word
}

// New compiles the patterns of words.
func New(words []Word) (*Censor, error) {
	banned := make([]Word, len(words))
	for i, w := range words {
		pattern := w.Pattern
		if pattern == "" {
			if w.Text == "" {
				return nil, fmt.Errorf("banned word %d has neither text nor pattern", i)
			}
			pattern = "^" + regexp.QuoteMeta(strings.ToLower(w.Text)) + "$"
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", w.Pattern, err)
		}
		w.re = re
		banned[i] = w
	}

	return &Censor{banned: banned}, nil
}

// lookalikes maps Latin letters that are commonly swapped for Cyrillic ones.
var lookalikes = strings.NewReplacer(
	"a", "а", "e", "е", "o", "о", "p", "р", "c", "с", "x", "х", "y", "у", "ё", "е",
)

func normalize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Check reports whether text contains a banned word. Words are compared in
// lower case, both as written and with Latin lookalikes replaced.
// A nil Censor allows everything.
func (c *Censor) Check(text string) bool {
	if c == nil {
		return false
	}

	for _, w := range normalize(text) {
		if c.isBanned(w) || c.isBanned(lookalikes.Replace(w)) {
			return true
		}
	}

	return false
}

func (c *Censor) isBanned(word string) bool {
	for _, b := range c.banned {
		match := b.re.FindString(word)
		if match == "" {
			continue
		}

		isException := false
		for _, exc := range b.Exceptions {
			if exc == match {
				isException = true
				break
			}
		}
		if !isException {
			return true
		}
	}
	return false
}
