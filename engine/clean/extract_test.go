package clean

import (
	"strings"
	"testing"
)

func TestExtract_ArticleContent(t *testing.T) {
	html := `<html><head><title> Model Penal Code </title><script>track()</script></head>
<body>
<nav>Home | About</nav>
<article><h1>General Provisions</h1><p>First &amp; second.</p><ul><li>one</li><li>two</li></ul></article>
<footer>All rights reserved.</footer>
</body></html>`

	text, title := Extract(html)
	if title != "Model Penal Code" {
		t.Errorf("title = %q, want %q", title, "Model Penal Code")
	}
	if !strings.Contains(text, "# General Provisions") {
		t.Errorf("h1 not mapped to heading: %q", text)
	}
	if !strings.Contains(text, "First & second.") {
		t.Errorf("paragraph text missing or entity undecoded: %q", text)
	}
	if !strings.Contains(text, "- one") || !strings.Contains(text, "- two") {
		t.Errorf("list items not mapped to bullets: %q", text)
	}
	for _, chrome := range []string{"Home | About", "All rights reserved", "track()"} {
		if strings.Contains(text, chrome) {
			t.Errorf("chrome %q leaked into extracted text: %q", chrome, text)
		}
	}
}

func TestExtract_MainFallback(t *testing.T) {
	html := `<body><aside>sidebar</aside><main><p>Body of the statute.</p></main></body>`

	text, title := Extract(html)
	if title != "" {
		t.Errorf("title = %q, want empty", title)
	}
	if text != "Body of the statute." {
		t.Errorf("text = %q, want %q", text, "Body of the statute.")
	}
}

func TestExtract_NoContainer(t *testing.T) {
	html := `<body><h2>Definitions</h2><p>A term means what it says.</p></body>`

	text, _ := Extract(html)
	if !strings.Contains(text, "## Definitions") {
		t.Errorf("h2 not mapped: %q", text)
	}
	if !strings.Contains(text, "A term means what it says.") {
		t.Errorf("paragraph missing: %q", text)
	}
}

func TestExtract_BreaksAndNoscript(t *testing.T) {
	html := `<noscript>enable js</noscript><p>line one<br>line two<br/>line three</p>`

	text, _ := Extract(html)
	if strings.Contains(text, "enable js") {
		t.Errorf("noscript content leaked: %q", text)
	}
	want := "line one\nline two\nline three"
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestNewExtractStats(t *testing.T) {
	s := NewExtractStats("one two\nthree")
	if s.CharCount != 13 || s.WordCount != 3 || s.LineCount != 2 {
		t.Errorf("stats = %+v, want chars 13 words 3 lines 2", s)
	}
	if z := NewExtractStats(""); z.CharCount != 0 || z.WordCount != 0 || z.LineCount != 0 {
		t.Errorf("empty stats = %+v, want zeros", z)
	}
}
