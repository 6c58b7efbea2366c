// Package textprep turns an AI output into plain text and sentences before
// it is checked for grounding.
package textprep

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
)

var (
	markupPattern = regexp.MustCompile(`(?is)<\s*/?\s*(html|body|div|p|span|br|li|ul|ol|h[1-6]|table|tr|td|th|script|style|a|strong|em|b|i|pre|code)\b[^>]*>`)
	spacePattern  = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// LooksLikeHTML reports whether text carries HTML markup.
func LooksLikeHTML(text string) bool {
	return markupPattern.MatchString(text)
}

// Normalize strips HTML markup when present and collapses whitespace.
func Normalize(text string) string {
	if LooksLikeHTML(text) {
		if plain, err := stripHTML(text); err == nil {
			text = plain
		}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return doc.Text(), nil
}

// Sentences segments text into sentences. If the segmenter fails the text
// is split on line breaks instead.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return splitLines(text)
	}

	var out []string
	for _, s := range doc.Sentences() {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return splitLines(text)
	}
	return out
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}
