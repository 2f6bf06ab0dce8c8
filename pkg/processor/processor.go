package processor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizerConfig controls how document content is prepared before it
// is handed to the embedding model.
type NormalizerConfig struct {
	MaxChars  int  // normalised output is truncated to this many runes
	StripHTML bool // strip markup when the content looks like HTML
}

// Normalizer prepares raw document content for embedding: markup is
// stripped, whitespace collapsed, and the result truncated to a fixed
// maximum length. It is pure and safe for concurrent use.
type Normalizer struct {
	config NormalizerConfig
}

var htmlPattern = regexp.MustCompile(`<\s*(!DOCTYPE|html|head|body|div|p|span|a|h[1-6]|ul|ol|li|table|br|img)\b`)

func NewWithConfig(config NormalizerConfig) Normalizer {
	if config.MaxChars == 0 {
		config.MaxChars = 8000
	}

	return Normalizer{
		config: config,
	}
}

func New() Normalizer {
	return NewWithConfig(NormalizerConfig{StripHTML: true})
}

// Normalize returns the cleaned, embeddable form of content. The empty
// string means there is nothing worth embedding.
func (n Normalizer) Normalize(content string) string {
	if n.config.StripHTML && looksLikeHTML(content) {
		content = stripHTML(content)
	}

	// Collapse runs of whitespace to single spaces
	content = strings.Join(strings.Fields(content), " ")

	return truncateRunes(strings.TrimSpace(content), n.config.MaxChars)
}

func looksLikeHTML(content string) bool {
	return htmlPattern.MatchString(content)
}

func stripHTML(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		// Unparseable markup falls through as plain text
		return content
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
