// Package filter turns raw user text into a safe, masked chat body.
package filter

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Mask character used for banned words.
const Mask = '*'

// Elements whose text content is dropped together with the markup.
var dropContent = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Textarea: true,
	atom.Option:   true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Title:    true,
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Apply strips markup from raw, masks every banned word in the remaining
// text and escapes it. Masking sees decoded text, so words containing
// quotes or ampersands match what the reader sees.
func Apply(raw string, bannedWords []string) string {
	return escapeText(MaskWords(StripMarkup(raw), bannedWords))
}

// Sanitize removes all markup from raw and escapes the text that is left,
// so the result never contains an active tag.
func Sanitize(raw string) string {
	return escapeText(StripMarkup(raw))
}

// StripMarkup returns the decoded text of raw with every tag, comment and
// doctype removed. The result is plain text and must be escaped before it
// is rendered as HTML.
func StripMarkup(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}

	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	b.Grow(len(raw))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				// The tokenizer only fails on read errors from a strings.Reader.
				return raw
			}
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if dropContent[atom.Lookup(name)] {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if dropContent[atom.Lookup(name)] && skip > 0 {
				skip--
			}
		default:
			// Comments, doctypes and self-closing tags are dropped.
		}
	}
}

// escapeText encodes only &, < and >. Quotes are plain text outside
// attributes and stay as typed.
func escapeText(text string) string {
	if !strings.ContainsAny(text, "&<>") {
		return text
	}
	return textEscaper.Replace(text)
}

// MaskWords replaces every case-insensitive occurrence of each banned word
// with Mask repeated to the length of the match. Words are applied in order
// and blank words are ignored.
func MaskWords(text string, bannedWords []string) string {
	if text == "" || len(bannedWords) == 0 {
		return text
	}
	runes := []rune(text)
	for _, word := range bannedWords {
		if strings.TrimSpace(word) == "" {
			continue
		}
		maskRunes(runes, []rune(word))
	}
	return string(runes)
}

// maskRunes masks leftmost non-overlapping matches of needle in place.
func maskRunes(haystack, needle []rune) {
	n := len(needle)
	for i := 0; i+n <= len(haystack); {
		if matchFold(haystack[i:i+n], needle) {
			for j := i; j < i+n; j++ {
				haystack[j] = Mask
			}
			i += n
			continue
		}
		i++
	}
}

func matchFold(a, b []rune) bool {
	for i := range a {
		if !equalFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
