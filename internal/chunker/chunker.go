// Package chunker splits plain text payloads such as transcripts into
// paragraph-sized chunks.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkSize is used when a chunker is built with a non-positive size.
const DefaultMaxChunkSize = 1000

// Chunk is one piece of chunked text.
type Chunk struct {
	Text  string
	Index int
}

// TextChunker groups consecutive non-blank lines into chunks no longer than
// MaxChunkSize characters. A single line longer than the limit is split on
// word boundaries; a single word longer than the limit is kept whole.
type TextChunker struct {
	MaxChunkSize int
}

// New returns a chunker with the given limit.
func New(maxChunkSize int) *TextChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &TextChunker{MaxChunkSize: maxChunkSize}
}

// Chunk splits text into chunks. Blank input yields no chunks.
func (c *TextChunker) Chunk(text string) []Chunk {
	limit := DefaultMaxChunkSize
	if c != nil && c.MaxChunkSize > 0 {
		limit = c.MaxChunkSize
	}

	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paragraphs = append(paragraphs, splitLong(line, limit)...)
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var (
		chunks    []Chunk
		buffer    []string
		bufferLen int
	)
	for _, paragraph := range paragraphs {
		length := utf8.RuneCountInString(paragraph)
		if len(buffer) > 0 && bufferLen+length+1 > limit {
			chunks = append(chunks, Chunk{Text: strings.Join(buffer, "\n"), Index: len(chunks)})
			buffer = []string{paragraph}
			bufferLen = length
			continue
		}
		buffer = append(buffer, paragraph)
		bufferLen += length + 1
	}
	if len(buffer) > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(buffer, "\n"), Index: len(chunks)})
	}
	return chunks
}

func splitLong(line string, limit int) []string {
	if utf8.RuneCountInString(line) <= limit {
		return []string{line}
	}
	var (
		parts   []string
		current strings.Builder
		size    int
	)
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)
		if size > 0 && size+1+wordLen > limit {
			parts = append(parts, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(word)
		size += wordLen
	}
	if size > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
