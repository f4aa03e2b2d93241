package answer

import (
	"fmt"
	"strings"

	"github.com/LexbaseAI/lexbase-mvp/engine/chunk"
	"github.com/LexbaseAI/lexbase-mvp/engine/clean"
	"github.com/LexbaseAI/lexbase-mvp/engine/domain"
)

const ragSystemPrompt = `You are Lexbase, a legal reference assistant.
Answer the user's question using ONLY the provided sources. Cite sources by
their number, like [Source 2]. If the sources do not contain the answer, say
so explicitly instead of guessing.`

const directSystemPrompt = `You are Lexbase, a legal reference assistant.
Answer the user's question from the provided documents. If the documents do
not contain the answer, say so explicitly instead of guessing.`

// Summarize tuning: bigger chunks than ingestion since only a handful
// represent each resource.
const (
	summarizeChunkSize    = 2000
	summarizeChunkOverlap = 100
	summarizeMaxChunks    = 5
)

var styleInstructions = map[domain.SummaryStyle]string{
	domain.StyleBrief:    "Keep the summary to a short paragraph.",
	domain.StyleDetailed: "Write a thorough summary covering every major point.",
	domain.StyleBullet:   "Format the summary as a bulleted list of key points.",
}

// buildRAGPrompt enumerates chunks as numbered, cited source blocks followed
// by the question.
func buildRAGPrompt(question string, chunks []domain.SourceChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		title := c.Title
		if title == "" {
			title = c.ResourceID
		}
		fmt.Fprintf(&b, "[Source %d: %s]\n%s\n\n", i+1, title, c.Text)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

// buildSummarizePrompt labels representative chunks of each resource by title
// and appends the style instruction.
func buildSummarizePrompt(resources []domain.Resource, style domain.SummaryStyle) string {
	var b strings.Builder
	b.WriteString("Summarize the following material.\n\n")
	for _, r := range resources {
		text := clean.Clean(r.Text(), clean.DefaultOptions())
		if text == "" {
			continue
		}
		parts := chunk.Chunk(text, summarizeChunkSize, summarizeChunkOverlap)
		if len(parts) > summarizeMaxChunks {
			parts = parts[:summarizeMaxChunks]
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", r.Title, strings.Join(parts, "\n"))
	}
	b.WriteString(styleInstructions[style])
	return b.String()
}

// buildContextBlob concatenates whole resource contents for the
// direct-context provider.
func buildContextBlob(resources []domain.Resource) string {
	blocks := make([]string, 0, len(resources))
	for _, r := range resources {
		text := r.Text()
		if text == "" {
			continue
		}
		header := "## " + r.Title
		if r.URL != "" {
			header += " (" + r.URL + ")"
		}
		blocks = append(blocks, header+"\n\n"+text)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// snippet caps text for the caller-facing source list.
func snippet(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max]
}
