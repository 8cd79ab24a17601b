package fileprocessor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledge-collector/internal/chunking"
)

func newTestProcessor(t *testing.T, conv *Converter) *Processor {
	t.Helper()
	tok, err := chunking.NewTokenizer()
	require.NoError(t, err)
	chunker := chunking.New(chunking.DefaultConfig(), tok)
	return New(conv, chunker)
}

func TestProcessStringSkipsBinaryMime(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.ProcessString("hello", "photo.png", "image/png")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestProcessStringRejectsEmbeddedNUL(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.ProcessString("hello\x00world", "note.txt", "text/plain")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestProcessStringPlainTextChunks(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.ProcessString("a short plain note", "note.txt", "text/plain")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "a short plain note", res.Content)
	require.Len(t, res.Chunks, 1)
	assert.Empty(t, res.Language)
}

func TestProcessStringGoSourceTagsLanguage(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.ProcessString("package main\n\nfunc main() {}\n", "main.go", "text/x-go")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "go", res.Language)
}

func TestProcessBytesRejectsUnconvertibleMime(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.ProcessBytes([]byte{0x01, 0x02}, "archive.bin", "application/octet-stream")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestProcessBytesNoConverterDropsContent(t *testing.T) {
	p := newTestProcessor(t, nil)
	res, err := p.ProcessBytes([]byte("%PDF-1.4 fake"), "doc.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, looksLikeHTML("text/html", "ignored"))
	assert.True(t, looksLikeHTML("text/plain", "<html><body>hi</body></html>"))
	assert.False(t, looksLikeHTML("text/plain", "just text"))
}

func TestIsSkippedMime(t *testing.T) {
	assert.True(t, isSkippedMime("image/png"))
	assert.True(t, isSkippedMime("application/zip"))
	assert.False(t, isSkippedMime("text/plain"))
}

func TestCodeLanguage(t *testing.T) {
	lang, ok := codeLanguage("internal/foo/bar.py")
	assert.True(t, ok)
	assert.Equal(t, "python", lang)

	_, ok = codeLanguage("README.md")
	assert.False(t, ok)
}

func TestStripTags(t *testing.T) {
	out := stripTags("<p>hello <b>world</b></p>")
	assert.Equal(t, "hello world", strings.TrimSpace(out))
}
