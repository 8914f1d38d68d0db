package util

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/russross/blackfriday/v2"
)

// Newlines and tabs survive; every other control character is dropped.
var controlCharsPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
var inlineSpacePattern = regexp.MustCompile(`[ \t\x{3000}]+`)
var htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)

var blockSelectors = "p, h1, h2, h3, h4, h5, h6, li, pre, blockquote, tr, dt, dd, hr"

// NormalizeDiaryText turns a diary entry into the reading sent to the model. Typed text keeps
// its wording, including markdown-looking characters. Entries pasted with HTML markup are
// rendered to plain text. Runs of spaces collapse, blank-line runs shrink to one, and the
// result is clipped to maxRunes (0 means no limit).
func NormalizeDiaryText(input string, maxRunes int) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")
	input = controlCharsPattern.ReplaceAllString(input, "")
	if IsBlank(input) {
		return ""
	}

	text := input
	if HasRichMarkup(input) {
		text = markupToText(input)
	}
	text = tidyLines(text)
	if maxRunes > 0 {
		text = strings.TrimSpace(ClipRunes(text, maxRunes))
	}
	return text
}

// HasRichMarkup reports whether the input carries HTML tags, as text copied from a web page or
// rich editor does.
func HasRichMarkup(input string) bool {
	return htmlTagPattern.MatchString(input)
}

// markupToText renders mixed markdown and HTML, then keeps only the visible text.
func markupToText(input string) string {
	rendered := blackfriday.Run([]byte(input), blackfriday.WithExtensions(blackfriday.CommonExtensions))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rendered))
	if err != nil {
		return input
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return doc.Text()
}

func tidyLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpacePattern.ReplaceAllString(line, " "))
		if line == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
