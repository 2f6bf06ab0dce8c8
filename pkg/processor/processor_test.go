package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	n := New()

	assert.Equal(t, "one two three", n.Normalize("one   two\n\nthree"))
	assert.Equal(t, "", n.Normalize("   \n\t  "))
	assert.Equal(t, "plain text", n.Normalize("plain text"))
}

func TestNormalizeStripsHTML(t *testing.T) {
	n := New()

	html := `<html><head><title>t</title><style>p{color:red}</style></head>
		<body><h1>Dosage</h1><p>Take   twice daily.</p>
		<script>alert("x")</script></body></html>`

	got := n.Normalize(html)
	assert.Contains(t, got, "Dosage")
	assert.Contains(t, got, "Take twice daily.")
	assert.NotContains(t, got, "alert")
	assert.NotContains(t, got, "color:red")
	assert.NotContains(t, got, "<p>")
}

func TestNormalizeLeavesAngleBracketsInProse(t *testing.T) {
	n := New()

	// Inequalities are not markup
	got := n.Normalize("doses < 5 mg and > 2 mg")
	assert.Equal(t, "doses < 5 mg and > 2 mg", got)
}

func TestNormalizeTruncates(t *testing.T) {
	n := NewWithConfig(NormalizerConfig{MaxChars: 10})

	got := n.Normalize(strings.Repeat("word ", 20))
	assert.LessOrEqual(t, len([]rune(got)), 10)
	assert.NotEmpty(t, got)
}

func TestNormalizeHTMLDisabled(t *testing.T) {
	n := NewWithConfig(NormalizerConfig{StripHTML: false})

	got := n.Normalize("<p>keep tags</p>")
	assert.Equal(t, "<p>keep tags</p>", got)
}
