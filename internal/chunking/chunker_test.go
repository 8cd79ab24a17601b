package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	tok, err := NewTokenizer()
	require.NoError(t, err)
	return New(DefaultConfig(), tok)
}

func TestChunkTextBelowMinReturnsWhole(t *testing.T) {
	c := newTestChunker(t)
	short := "just a short note"
	chunks := c.ChunkText(short)
	require.Len(t, chunks, 1)
	assert.Equal(t, short, chunks[0])
}

func TestChunkTextCoversSource(t *testing.T) {
	c := newTestChunker(t)
	var sb strings.Builder
	for i := 0; i < 400; i++ {
		sb.WriteString("This is paragraph number ")
		sb.WriteString(strings.Repeat("word ", 10))
		sb.WriteString("\n\n")
	}
	content := sb.String()

	chunks := c.ChunkText(content)
	require.Greater(t, len(chunks), 1)

	tok, _ := NewTokenizer()
	for _, chunk := range chunks {
		assert.LessOrEqual(t, tok.Count(chunk), DefaultConfig().ChunkSize*2)
	}
}

func TestChunkCodeUnsupportedExtensionFallsBackToText(t *testing.T) {
	c := newTestChunker(t)
	content := strings.Repeat("line of plain text content here\n", 500)
	chunks := c.ChunkCode(content, "notes.txt")
	assert.GreaterOrEqual(t, len(chunks), 1)
}

func TestChunkCodeGo(t *testing.T) {
	c := newTestChunker(t)
	var sb strings.Builder
	sb.WriteString("package example\n\n")
	for i := 0; i < 60; i++ {
		sb.WriteString("func Example")
		sb.WriteString(strings.Repeat("X", i%5+1))
		sb.WriteString("() int {\n\treturn 1\n}\n\n")
	}
	content := sb.String()

	chunks := c.ChunkCode(content, "example.go")
	require.GreaterOrEqual(t, len(chunks), 1)
	assert.Contains(t, chunks[0], "package example")
}

func TestTokenizerCountDeterministic(t *testing.T) {
	tok, err := NewTokenizer()
	require.NoError(t, err)
	text := "the quick brown fox jumps over the lazy dog"
	assert.Equal(t, tok.Count(text), tok.Count(text))
}
