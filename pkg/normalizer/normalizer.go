// Package normalizer turns raw user or document text into the canonical form
// used for prompts, hashing and embedding.
package normalizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"ai-chatbot-be/pkg/errs"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical single-line form of raw.
// It applies NFKC, drops zero-width and control characters and collapses
// all whitespace runs (line breaks included) to one space.
func Normalize(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", errs.ErrNormalization
	}

	var b strings.Builder
	b.Grow(len(raw))
	pendingSpace := false
	for _, r := range norm.NFKC.String(raw) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case dropped(r):
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// NormalizeDocument is Normalize for extracted documents: paragraphs survive
// as a single blank line, every other whitespace run becomes one space.
func NormalizeDocument(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", errs.ErrNormalization
	}

	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs []string
	for _, block := range splitParagraphs(text) {
		p, err := Normalize(block)
		if err != nil {
			return "", fmt.Errorf("normalize paragraph: %w", err)
		}
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// Fold returns a case-insensitive key for s. s should already be normalized.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// splitParagraphs splits on lines that are blank after trimming.
func splitParagraphs(text string) []string {
	var (
		blocks  []string
		current []string
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(stripInvisible(line)) == "" {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if dropped(r) {
			return -1
		}
		return r
	}, s)
}

// dropped reports control and format runes (zero-width, BOM, bidi marks).
func dropped(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
}
