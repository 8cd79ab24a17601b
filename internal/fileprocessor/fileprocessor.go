// Package fileprocessor implements the MIME-aware document conversion
// and chunking pipeline described in spec.md §4.4: raw bytes or strings
// in, normalized {content, chunks, language} or a skip decision out.
package fileprocessor

import (
	"strings"

	"knowledge-collector/internal/chunking"
)

// Result is the output of Process: nil means the input should be
// skipped (unsupported MIME, binary/archive, rejected content).
type Result struct {
	Content  string
	Chunks   []string
	Language string
}

var skippedMimePrefixes = []string{"image/", "video/", "audio/"}

var skippedMimeTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/octet-stream":     true,
	"application/x-tar":            true,
	"application/x-gzip":           true,
	"application/x-bzip2":          true,
	"application/x-7z-compressed":  true,
	"application/x-compress":       true,
	"application/x-compressed":     true,
}

// convertibleByteMimes maps byte-buffer MIME types the subprocess
// converter can turn into markdown (spec.md §4.4 step 3).
var convertibleByteMimes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/pdf": true,
	"text/html":       true,
	"text/csv":        true,
}

// Processor wires MIME sniffing, subprocess conversion, and chunking
// together into the single Process entry point.
type Processor struct {
	converter *Converter
	chunker   *chunking.Chunker
}

// New builds a Processor. converter may be nil to disable subprocess
// conversion (tests, or environments without markitdown installed) —
// every input that needs conversion, HTML included, is then rejected;
// unlike a Converter whose tool is missing, no HTML fallback is tried.
func New(converter *Converter, chunker *chunking.Chunker) *Processor {
	return &Processor{converter: converter, chunker: chunker}
}

// ProcessString implements steps 1-2-4 of spec.md §4.4 for raw string
// input, e.g. connector-supplied body text.
func (p *Processor) ProcessString(content, filePath, mimeType string) (*Result, error) {
	if isSkippedMime(mimeType) {
		return nil, nil
	}
	if strings.ContainsRune(content, 0) {
		return nil, nil
	}

	if looksLikeHTML(mimeType, content) {
		converted, err := p.convert([]byte(content), filePath, "text/html")
		if err != nil {
			return nil, err
		}
		if converted == "" {
			return nil, nil
		}
		content = converted
	}

	return p.chunkInto(content, filePath), nil
}

// ProcessBytes implements steps 1-3-4 of spec.md §4.4 for byte-buffer
// input, e.g. a downloaded attachment.
func (p *Processor) ProcessBytes(data []byte, filePath, mimeType string) (*Result, error) {
	if isSkippedMime(mimeType) {
		return nil, nil
	}
	if !convertibleByteMimes[mimeType] {
		return nil, nil
	}

	converted, err := p.convert(data, filePath, mimeType)
	if err != nil {
		return nil, err
	}
	if converted == "" {
		return nil, nil
	}
	return p.chunkInto(converted, filePath), nil
}

func (p *Processor) convert(data []byte, filePath, mimeType string) (string, error) {
	if p.converter == nil {
		return "", nil
	}
	return p.converter.ToMarkdown(data, filePath, mimeType)
}

func (p *Processor) chunkInto(content, filePath string) *Result {
	lang, isCode := codeLanguage(filePath)
	var chunks []string
	if isCode {
		chunks = p.chunker.ChunkCode(content, filePath)
	} else {
		chunks = p.chunker.ChunkText(content)
	}
	res := &Result{Content: content, Chunks: chunks}
	if isCode {
		res.Language = lang
	}
	return res
}

func isSkippedMime(mimeType string) bool {
	for _, prefix := range skippedMimePrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return skippedMimeTypes[mimeType]
}

func looksLikeHTML(mimeType, content string) bool {
	if mimeType == "text/html" {
		return true
	}
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body")
}
