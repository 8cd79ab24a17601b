// Package rawstore persists an unmodified copy of every indexed
// document's content to local disk, the best-effort audit trail spec.md
// §7 calls out separately from the authoritative vector-store write.
package rawstore

import (
	"context"
	"os"
	"path/filepath"

	"knowledge-collector/pkg/types"
)

// FileSaver writes one file per document under baseDir/{source}/{id}.
type FileSaver struct {
	baseDir string
}

// New builds a FileSaver rooted at baseDir, creating it if necessary.
func New(baseDir string) (*FileSaver, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &FileSaver{baseDir: baseDir}, nil
}

// Save writes d.Content to baseDir/{source}/{sanitized id}.
func (f *FileSaver) Save(_ context.Context, source types.Source, d types.Document) error {
	dir := filepath.Join(f.baseDir, string(source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, sanitizeFilename(d.ID))
	return os.WriteFile(path, []byte(d.Content), 0o644)
}

// sanitizeFilename replaces path separators so a document id with
// slashes (GitHub file paths, Slack thread keys) never escapes baseDir.
func sanitizeFilename(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch r {
		case '/', '\\', ':':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
