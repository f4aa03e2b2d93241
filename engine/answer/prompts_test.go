package answer

import (
	"strings"
	"testing"

	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
)

func TestBuildRAGPrompt_TitleFallsBackToID(t *testing.T) {
	p := buildRAGPrompt("q", []domain.SourceChunk{
		{ResourceID: "r1", Text: "chunk one"},
		{ResourceID: "r2", Title: "Named", Text: "chunk two"},
	})
	if !strings.Contains(p, "[Source 1: r1]") {
		t.Errorf("missing id fallback: %q", p)
	}
	if !strings.Contains(p, "[Source 2: Named]") {
		t.Errorf("missing titled source: %q", p)
	}
	if !strings.HasSuffix(p, "Question: q") {
		t.Errorf("question not last: %q", p)
	}
}

func TestBuildSummarizePrompt_CapsChunks(t *testing.T) {
	// Enough text for far more than summarizeMaxChunks chunks.
	long := strings.Repeat("Each provision of the statute is explained at length here. ", 400)
	p := buildSummarizePrompt([]domain.Resource{{ID: "r1", Title: "Code", Content: long}}, domain.StyleBrief)

	if !strings.Contains(p, "### Code") {
		t.Errorf("resource label missing")
	}
	if !strings.HasSuffix(p, styleInstructions[domain.StyleBrief]) {
		t.Errorf("style instruction not appended")
	}
	// ~24k chars of input must not all land in the prompt.
	if len(p) > summarizeMaxChunks*summarizeChunkSize+1000 {
		t.Errorf("prompt too large: %d chars", len(p))
	}
}

func TestBuildContextBlob(t *testing.T) {
	blob := buildContextBlob([]domain.Resource{
		{Title: "With URL", URL: "https://example.com", Content: "body one"},
		{Title: "Empty"},
		{Title: "No URL", Description: "body two"},
	})
	if !strings.Contains(blob, "## With URL (https://example.com)\n\nbody one") {
		t.Errorf("header wrong: %q", blob)
	}
	if strings.Contains(blob, "Empty") {
		t.Errorf("contentless resource included: %q", blob)
	}
	if !strings.Contains(blob, "## No URL\n\nbody two") {
		t.Errorf("url-less header wrong: %q", blob)
	}
	if strings.Count(blob, "\n\n---\n\n") != 1 {
		t.Errorf("delimiter count wrong: %q", blob)
	}
}

func TestSnippet(t *testing.T) {
	if got := snippet("  short  ", 200); got != "short" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("a", 300)
	if got := snippet(long, 200); len(got) != 200 {
		t.Errorf("len = %d", len(got))
	}
}
