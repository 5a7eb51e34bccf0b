package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkBlankInput(t *testing.T) {
	c := New(100)
	if got := c.Chunk("  \n\n \t"); got != nil {
		t.Fatalf("expected no chunks, got %#v", got)
	}
}

func TestChunkSingleShortText(t *testing.T) {
	got := New(100).Chunk("  hello  ")
	if len(got) != 1 || got[0].Text != "hello" || got[0].Index != 0 {
		t.Fatalf("unexpected chunks: %#v", got)
	}
}

func TestChunkGroupsParagraphsUpToLimit(t *testing.T) {
	text := "aaaa\n\nbbbb\ncccc\ndddd"
	got := New(10).Chunk(text)
	want := []string{"aaaa\nbbbb", "cccc\ndddd"}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %#v", len(want), got)
	}
	for i, w := range want {
		if got[i].Text != w || got[i].Index != i {
			t.Fatalf("chunk %d: expected %q/%d, got %q/%d", i, w, i, got[i].Text, got[i].Index)
		}
	}
}

func TestChunkSplitsLongLineOnWords(t *testing.T) {
	line := strings.Repeat("word ", 50)
	got := New(22).Chunk(line)
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	for _, chunk := range got {
		if n := utf8.RuneCountInString(chunk.Text); n > 22 {
			t.Fatalf("chunk exceeds limit (%d): %q", n, chunk.Text)
		}
	}
	joined := make([]string, 0, len(got))
	for _, chunk := range got {
		joined = append(joined, strings.ReplaceAll(chunk.Text, "\n", " "))
	}
	if strings.Join(joined, " ") != strings.TrimSpace(line) {
		t.Fatal("expected chunks to preserve every word in order")
	}
}

func TestChunkKeepsOversizedWord(t *testing.T) {
	word := strings.Repeat("x", 30)
	got := New(10).Chunk(word)
	if len(got) != 1 || got[0].Text != word {
		t.Fatalf("expected single oversized chunk, got %#v", got)
	}
}

func TestChunkCountsRunes(t *testing.T) {
	got := New(5).Chunk("héllo\nwörld")
	if len(got) != 2 {
		t.Fatalf("expected rune-based splitting into 2 chunks, got %#v", got)
	}
}

func TestNewDefaultsLimit(t *testing.T) {
	if New(0).MaxChunkSize != DefaultMaxChunkSize {
		t.Fatal("expected default max chunk size")
	}
}
