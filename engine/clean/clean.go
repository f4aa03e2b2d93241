// Package clean normalizes raw extracted text (HTML fragments, markdown,
// scraped prose) into embedding-ready plain text. Defaults are tuned for
// legal long-form documents rather than generic web boilerplate: URLs are
// often citations and repeated phrases are often operative language, so the
// aggressive filters are opt-in.
package clean

import (
	"math"
	"regexp"
	"strings"
)

// Options control the individual cleaning passes. Each pass can be toggled
// independently; the pass ordering is fixed regardless of which are enabled.
type Options struct {
	RemoveHTML          bool `json:"removeHtml"`
	NormalizeMarkdown   bool `json:"normalizeMarkdown"`
	RemoveURLs          bool `json:"removeUrls"`
	RemoveBoilerplate   bool `json:"removeBoilerplate"`
	RemoveShortLines    bool `json:"removeShortLines"`
	MinLineLength       int  `json:"minLineLength"`
	RemoveDuplicates    bool `json:"removeDuplicates"`
	NormalizeWhitespace bool `json:"normalizeWhitespace"`
}

// DefaultOptions are the conservative defaults for legal documents.
func DefaultOptions() Options {
	return Options{
		RemoveHTML:          true,
		NormalizeMarkdown:   true,
		RemoveURLs:          false,
		RemoveBoilerplate:   false,
		RemoveShortLines:    false,
		MinLineLength:       10,
		RemoveDuplicates:    false,
		NormalizeWhitespace: true,
	}
}

// CleaningStats reports how much a cleaning pass removed.
type CleaningStats struct {
	OriginalChars    int     `json:"original_chars"`
	CleanedChars     int     `json:"cleaned_chars"`
	CharsRemoved     int     `json:"chars_removed"`
	WordsRemoved     int     `json:"words_removed"`
	LinesRemoved     int     `json:"lines_removed"`
	ReductionPercent float64 `json:"reduction_percent"`
}

// Stats computes before/after statistics for a cleaning run.
func Stats(original, cleaned string) CleaningStats {
	s := CleaningStats{
		OriginalChars: len(original),
		CleanedChars:  len(cleaned),
	}
	s.CharsRemoved = s.OriginalChars - s.CleanedChars
	s.WordsRemoved = len(strings.Fields(original)) - len(strings.Fields(cleaned))
	s.LinesRemoved = lineCount(original) - lineCount(cleaned)
	if s.OriginalChars > 0 {
		pct := float64(s.CharsRemoved) / float64(s.OriginalChars) * 100
		s.ReductionPercent = math.Round(pct*100) / 100
	}
	return s
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Clean runs the enabled passes in their fixed order:
// HTML strip, markdown normalize, URL strip, whitespace normalize,
// line filters (boilerplate, short lines, duplicates), final whitespace pass.
// Empty or whitespace-only input yields empty output.
func Clean(text string, opts Options) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if opts.MinLineLength <= 0 {
		opts.MinLineLength = 10
	}

	s := text
	if opts.RemoveHTML {
		s = stripHTML(s)
	}
	if opts.NormalizeMarkdown {
		s = normalizeMarkdown(s)
	}
	if opts.RemoveURLs {
		s = filterLines(s, func(trimmed string) bool {
			return !bareURLRe.MatchString(trimmed)
		})
	}
	if opts.NormalizeWhitespace {
		s = normalizeWhitespace(s)
	}
	if opts.RemoveBoilerplate {
		s = filterLines(s, func(trimmed string) bool {
			return trimmed == "" || !isBoilerplate(trimmed)
		})
	}
	if opts.RemoveShortLines {
		s = dropShortLines(s, opts.MinLineLength)
	}
	if opts.RemoveDuplicates {
		s = dropDuplicateLines(s)
	}
	if opts.NormalizeWhitespace {
		s = normalizeWhitespace(s)
	}
	return s
}

var (
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	entityRe  = regexp.MustCompile(`&#?[a-zA-Z0-9]+;`)

	headingRe    = regexp.MustCompile(`^#{4,}`)
	hruleRe      = regexp.MustCompile(`^[-*_]{4,}$`)
	leadingWSRe  = regexp.MustCompile(`^[ \t]{4,}`)
	bareURLRe    = regexp.MustCompile(`^https?://\S+$`)
	spaceRunRe   = regexp.MustCompile(` {2,}`)
	newlineRunRe = regexp.MustCompile(`\n{4,}`)

	separatorLineRe = regexp.MustCompile(`^[-=_*~|•·#]{3,}$`)
	listItemRe      = regexp.MustCompile(`^(#{1,6}\s|[-*+]\s|\d+[.)]\s)`)
	sectionSymRe    = regexp.MustCompile(`^§\s*\d`)
	enumeratorRe    = regexp.MustCompile(`^\([0-9a-z]{1,4}\)`)
	legalHeadingRe  = regexp.MustCompile(`^(Section|Article|Chapter|Part|Title|Rule)\s+\d`)
)

// namedEntities are the only entities decoded; anything else is dropped.
var namedEntities = [][2]string{
	{"&nbsp;", " "},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"&amp;", "&"}, // last, so double-encoded text decodes one level only
}

func stripHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, "")
	s = styleRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, "")
	for _, e := range namedEntities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return entityRe.ReplaceAllString(s, "")
}

func normalizeMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	prevRule := false
	blanks := 0

	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if hruleRe.MatchString(strings.TrimSpace(line)) {
			line = "---"
		}
		line = headingRe.ReplaceAllString(line, "###")
		line = leadingWSRe.ReplaceAllString(line, "    ")

		isRule := line == "---"
		if isRule && prevRule {
			continue
		}
		prevRule = isRule

		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\t", "    ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = newlineRunRe.ReplaceAllString(s, "\n\n\n")
	return strings.TrimSpace(s)
}

// filterLines keeps lines where keep(trimmed) is true.
func filterLines(s string, keep func(trimmed string) bool) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if keep(strings.TrimSpace(line)) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// boilerplatePhrases is web chrome that carries no document content.
// Matching is exact and case-insensitive on the trimmed line.
var boilerplatePhrases = map[string]bool{
	"home": true, "menu": true, "search": true, "about": true,
	"about us": true, "contact": true, "contact us": true,
	"skip to content": true, "skip to main content": true,
	"privacy policy": true, "terms of service": true, "cookie policy": true,
	"share": true, "share this": true, "tweet": true, "print": true,
	"follow us": true, "subscribe": true, "subscribe to our newsletter": true,
	"sign up": true, "sign in": true, "log in": true, "login": true,
	"register": true, "read more": true, "learn more": true,
	"advertisement": true, "sponsored": true, "sponsored content": true,
	"related articles": true, "back to top": true,
}

func isBoilerplate(trimmed string) bool {
	if separatorLineRe.MatchString(trimmed) {
		return true
	}
	return boilerplatePhrases[strings.ToLower(trimmed)]
}

// dropShortLines removes trimmed lines shorter than minLen, keeping blanks,
// markdown structure, and legal-structure markers (section symbols,
// parenthesized enumerators, "Section 12"-style headings).
func dropShortLines(s string, minLen int) string {
	return filterLines(s, func(trimmed string) bool {
		if trimmed == "" || len(trimmed) >= minLen {
			return true
		}
		return listItemRe.MatchString(trimmed) ||
			sectionSymRe.MatchString(trimmed) ||
			enumeratorRe.MatchString(trimmed) ||
			legalHeadingRe.MatchString(trimmed)
	})
}

// dropDuplicateLines removes lines whose case-insensitive trimmed form has
// already appeared. Blank lines are exempt.
func dropDuplicateLines(s string) string {
	seen := make(map[string]bool)
	return filterLines(s, func(trimmed string) bool {
		if trimmed == "" {
			return true
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}
