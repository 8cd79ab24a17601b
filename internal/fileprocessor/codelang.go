package fileprocessor

import (
	"path/filepath"
	"strings"
)

// codeExtensions decides which files are routed to chunk_code and tagged
// with a language (spec.md §4.3/§4.4 step 4). It covers more extensions
// than the chunker has grammars for; those without one (java, ruby,
// rust, c, cpp) are still tagged but chunked by chunk_text.
var codeExtensions = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
}

func codeLanguage(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := codeExtensions[ext]
	return lang, ok
}
