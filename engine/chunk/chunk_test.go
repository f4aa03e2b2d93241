package chunk

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\n"} {
		if got := Chunk(in, 100, 20); got != nil {
			t.Errorf("Chunk(%q) = %v, want nil", in, got)
		}
	}
}

func TestChunk_ShortText_SingleChunk(t *testing.T) {
	got := Chunk("one small paragraph", 1000, 200)
	if len(got) != 1 || got[0] != "one small paragraph" {
		t.Fatalf("got %v", got)
	}
}

func TestChunk_SentenceBoundary(t *testing.T) {
	// The window covers most of the text; the cut should land after the
	// ". " in the back half of the window, not mid-word.
	text := "The first sentence is right here. The second sentence continues on for a while longer."
	got := Chunk(text, 50, 10)
	if len(got) < 2 {
		t.Fatalf("got %v", got)
	}
	if got[0] != "The first sentence is right here." {
		t.Fatalf("first chunk = %q", got[0])
	}
}

func TestChunk_BoundaryBeforeMidpointIgnored(t *testing.T) {
	// Only boundary is early in the window, so the hard cut stays.
	text := "Ab. " + strings.Repeat("x", 96) + strings.Repeat("y", 50)
	got := Chunk(text, 100, 0)
	if len(got[0]) != 100 {
		t.Fatalf("expected hard cut at 100, got %d chars", len(got[0]))
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("Sentences repeat here. More text follows after that.\n", 40)
	a := Chunk(text, 120, 30)
	b := Chunk(text, 120, 30)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same input produced different chunk sequences")
	}
}

func TestChunk_TerminatesWhenOverlapExceedsSize(t *testing.T) {
	text := strings.Repeat("abcd ", 100)
	done := make(chan []string, 1)
	go func() { done <- Chunk(text, 10, 50) }()
	got := <-done
	if len(got) == 0 {
		t.Fatal("no chunks")
	}
	for i, c := range got {
		if strings.TrimSpace(c) == "" {
			t.Fatalf("chunk %d empty", i)
		}
	}
}

func TestChunk_CoversText(t *testing.T) {
	// Every word of the input must appear in some chunk.
	var words []string
	for i := 0; i < 120; i++ {
		words = append(words, fmt.Sprintf("w%03d.", i))
	}
	text := strings.Join(words, " ")
	chunks := Chunk(text, 90, 20)
	joined := strings.Join(chunks, " ")
	for _, w := range words {
		if !strings.Contains(joined, w) {
			t.Fatalf("word %q lost", w)
		}
	}
}

func TestChunk_TinyWindowScenario(t *testing.T) {
	got := Chunk("A. B. C.", 4, 1)
	if len(got) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range got {
		if c == "" || c != strings.TrimSpace(c) {
			t.Fatalf("chunk %d not trimmed: %q", i, c)
		}
	}
	joined := strings.Join(got, "")
	for _, r := range "ABC" {
		if !strings.ContainsRune(joined, r) {
			t.Fatalf("%q not covered by %v", r, got)
		}
	}
}

func TestChunk_OverlapCarriesTail(t *testing.T) {
	text := strings.Repeat("z", 250)
	got := Chunk(text, 100, 40)
	if len(got) < 2 {
		t.Fatalf("got %d chunks", len(got))
	}
	// Consecutive chunks share the overlap region.
	if !strings.HasPrefix(got[1], got[0][len(got[0])-40:]) {
		t.Fatal("second chunk does not start with the first chunk's tail")
	}
}

func TestChunk_MultibyteCutsStayOnRuneBoundaries(t *testing.T) {
	// Section symbols are two bytes each; a hard cut landing inside one
	// must be pulled back instead of splitting the sequence.
	inputs := []string{
		"§ 1 applies. § 2 controls. §§§§§§§§§§",
		strings.Repeat("§", 40),
		"Straße und Überführung. " + strings.Repeat("Gebäudehöhe über 30 m. ", 10),
		"条文は第一条から始まる。次条も同様とする。",
	}
	for _, text := range inputs {
		for _, size := range []int{5, 7, 16, 100} {
			for i, c := range Chunk(text, size, 1) {
				if !utf8.ValidString(c) {
					t.Fatalf("Chunk(%q, %d, 1): chunk %d is invalid UTF-8: %q", text, size, i, c)
				}
			}
		}
	}
}

func TestChunk_MultibyteCoversRunes(t *testing.T) {
	text := strings.Repeat("§ 12 gilt. ", 30)
	joined := strings.Join(Chunk(text, 40, 10), " ")
	if strings.Count(joined, "§") < 30 {
		t.Fatalf("section marks lost: %d of 30 survive", strings.Count(joined, "§"))
	}
	if !utf8.ValidString(joined) {
		t.Fatal("joined chunks contain invalid UTF-8")
	}
}

func TestTokenEstimate(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 1000), 250},
	}
	for _, c := range cases {
		if got := TokenEstimate(c.in); got != c.want {
			t.Errorf("TokenEstimate(%d chars) = %d, want %d", len(c.in), got, c.want)
		}
	}
}
