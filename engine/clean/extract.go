package clean

import (
	"regexp"
	"strings"
)

// ExtractStats summarizes extracted text.
type ExtractStats struct {
	CharCount int `json:"char_count"`
	WordCount int `json:"word_count"`
	LineCount int `json:"line_count"`
}

// NewExtractStats computes stats for extracted text.
func NewExtractStats(text string) ExtractStats {
	return ExtractStats{
		CharCount: len(text),
		WordCount: len(strings.Fields(text)),
		LineCount: lineCount(text),
	}
}

var (
	noscriptRe = regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript>`)
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>([^<]*)</title>`)
	articleRe  = regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`)
	mainRe     = regexp.MustCompile(`(?is)<main[^>]*>(.*?)</main>`)

	h1Re       = regexp.MustCompile(`(?i)<h1[^>]*>`)
	h2Re       = regexp.MustCompile(`(?i)<h2[^>]*>`)
	h3Re       = regexp.MustCompile(`(?i)<h3[^>]*>`)
	hCloseRe   = regexp.MustCompile(`(?i)</h[1-6]>`)
	pOpenRe    = regexp.MustCompile(`(?i)<p[^>]*>`)
	pCloseRe   = regexp.MustCompile(`(?i)</p>`)
	brRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	liOpenRe   = regexp.MustCompile(`(?i)<li[^>]*>`)
	liCloseRe  = regexp.MustCompile(`(?i)</li>`)
	chromeTags = []string{"header", "footer", "nav", "aside"}
)

// Extract pulls the main readable content out of an HTML page, mapping
// document structure to markdown-ish text. It returns the text and the
// page title when one is present.
func Extract(html string) (text, title string) {
	s := scriptRe.ReplaceAllString(html, "")
	s = styleRe.ReplaceAllString(s, "")
	s = noscriptRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")

	if m := titleRe.FindStringSubmatch(s); m != nil {
		title = strings.TrimSpace(m[1])
	}

	for _, tag := range chromeTags {
		re := regexp.MustCompile(`(?is)<` + tag + `\b[^>]*>.*?</` + tag + `>`)
		s = re.ReplaceAllString(s, "")
	}

	// Prefer the article or main container when the page has one.
	if m := articleRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if m := mainRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	s = h1Re.ReplaceAllString(s, "\n\n# ")
	s = h2Re.ReplaceAllString(s, "\n\n## ")
	s = h3Re.ReplaceAllString(s, "\n\n### ")
	s = hCloseRe.ReplaceAllString(s, "\n")
	s = pOpenRe.ReplaceAllString(s, "\n\n")
	s = pCloseRe.ReplaceAllString(s, "")
	s = brRe.ReplaceAllString(s, "\n")
	s = liOpenRe.ReplaceAllString(s, "\n- ")
	s = liCloseRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")

	for _, e := range namedEntities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}

	s = newlineRunRe.ReplaceAllString(s, "\n\n\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s), title
}
