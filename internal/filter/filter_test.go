package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskWords(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		words []string
		want  string
	}{
		{"simple", "spam offer", []string{"spam"}, "**** offer"},
		{"case insensitive", "SpAm and SPAM", []string{"spam"}, "**** and ****"},
		{"substring of a longer word", "antispammer", []string{"spam"}, "anti****mer"},
		{"non overlapping leftmost", "aaaa", []string{"aa"}, "****"},
		{"odd overlap", "aaa", []string{"aa"}, "**a"},
		{"multiple words in order", "reklam spam", []string{"spam", "reklam"}, "****** ****"},
		{"unicode folding", "ŞƏRT şərt", []string{"şərt"}, "**** ****"},
		{"blank words skipped", "hello", []string{"", "  "}, "hello"},
		{"no words", "spam", nil, "spam"},
		{"empty text", "", []string{"spam"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskWords(tt.text, tt.words))
		})
	}
}

func TestMaskWords_NoBannedWordSurvives(t *testing.T) {
	words := []string{"spam", "reklam", "pul"}
	inputs := []string{
		"SPAM spam Spam",
		"reklamreklam",
		"xpulx PUL pUl",
		"spamreklampul",
	}
	for _, in := range inputs {
		out := strings.ToLower(MaskWords(in, words))
		for _, w := range words {
			assert.NotContains(t, out, w, "input %q", in)
		}
		assert.Equal(t, len([]rune(in)), len([]rune(out)))
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain text untouched", "salam dostlar", "salam dostlar"},
		{"tags stripped", "<b>bold</b> text", "bold text"},
		{"attributes dropped", `<a href="javascript:alert(1)">link</a>`, "link"},
		{"script content dropped", "hi<script>alert(1)</script>there", "hithere"},
		{"style content dropped", "<style>body{}</style>ok", "ok"},
		{"comment dropped", "a<!-- hidden -->b", "ab"},
		{"entities re-escaped", "1 &lt; 2", "1 &lt; 2"},
		{"bare ampersand escaped", "tom & jerry", "tom &amp; jerry"},
		{"quotes stay plain", `it's "ok"`, `it's "ok"`},
		{"img removed", `<img src=x onerror=alert(1)>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestSanitize_NoActiveMarkupSurvives(t *testing.T) {
	inputs := []string{
		"<<script>script>alert(1)<</script>/script>",
		"<scr<script>ipt>alert(1)</script>",
		"<svg/onload=alert(1)>",
		"<p>unterminated",
		"<",
		"a < b > c",
	}
	for _, in := range inputs {
		out := Sanitize(in)
		assert.NotContains(t, out, "<", "input %q", in)
		assert.NotContains(t, out, ">", "input %q", in)
	}
}

func TestApply_SanitizesBeforeMasking(t *testing.T) {
	got := Apply("<i>sp</i>am offer", []string{"spam"})
	assert.Equal(t, "**** offer", got)

	assert.Equal(t, "**** offer", Apply("spam offer", []string{"spam"}))
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "1 < 2 & 3", StripMarkup("<p>1 &lt; 2 &amp; 3</p>"))
	assert.Equal(t, `it's "fine"`, StripMarkup(`<b>it's</b> "fine"`))
	assert.Equal(t, "&lt;", StripMarkup("&amp;lt;"))
}

func TestApply_MasksDecodedText(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		words []string
		want  string
	}{
		{"apostrophe in word", "don't do that", []string{"don't"}, "***** do that"},
		{"quotes kept around masked word", `"spam" here`, []string{"spam"}, `"****" here`},
		{"quoted banned word", `say "spam"`, []string{`"spam"`}, "say ******"},
		{"ampersand word", "Tom & Jerry", []string{"&"}, "Tom * Jerry"},
		{"entity counts as one char", "Tom &amp; Jerry", []string{"&"}, "Tom * Jerry"},
		{"apostrophe untouched", "it's fine", nil, "it's fine"},
		{"unmasked ampersand escaped", "Tom & spam", []string{"spam"}, "Tom &amp; ****"},
		{"decoded brackets escaped", "&lt;b&gt;spam", []string{"spam"}, "&lt;b&gt;****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.raw, tt.words))
		})
	}
}
