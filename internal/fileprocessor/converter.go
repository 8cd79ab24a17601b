package fileprocessor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"knowledge-collector/internal/logging"
)

// Converter shells out to an external document-to-markdown tool
// (markitdown or equivalent) for the byte formats spec.md §4.4 names,
// falling back to a goldmark-based plain-text extraction for HTML when
// the subprocess tool is unavailable.
type Converter struct {
	toolPath string
	timeout  time.Duration
	logger   logging.Logger
}

// NewConverter returns a Converter invoking toolPath (defaulting to
// "markitdown" on PATH) for every conversion.
func NewConverter(toolPath string, logger logging.Logger) *Converter {
	if toolPath == "" {
		toolPath = "markitdown"
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Converter{toolPath: toolPath, timeout: 30 * time.Second, logger: logger}
}

// ToMarkdown converts data (believed to be mimeType, originally at
// filePath) to markdown text. Every exit path removes the scoped temp
// file it creates (spec.md §4.4 step 5). A conversion failure is
// reported as "" with a logged warning, not an error — invalid content
// is dropped, not fatal to the run (spec.md §7).
func (c *Converter) ToMarkdown(data []byte, filePath, mimeType string) (string, error) {
	out, err := c.runSubprocess(data, filePath)
	if err == nil {
		return out, nil
	}
	c.logger.Warn("fileprocessor: subprocess conversion failed, falling back", "path", filePath, "mimeType", mimeType, "error", err)

	if mimeType == "text/html" {
		return htmlToPlainText(data), nil
	}
	return "", nil
}

func (c *Converter) runSubprocess(data []byte, filePath string) (string, error) {
	tmp, err := os.CreateTemp("", "collector-*"+filepath.Ext(filePath))
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, c.toolPath, tmpPath)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

// htmlToPlainText is a minimal fallback used only when the subprocess
// converter is unavailable: it parses the input as markdown-ish text
// through goldmark's reader and strips obvious tags, good enough to
// avoid indexing raw markup when the primary path can't run.
func htmlToPlainText(data []byte) string {
	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return stripTags(string(data))
	}
	return stripTags(buf.String())
}

func stripTags(s string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
