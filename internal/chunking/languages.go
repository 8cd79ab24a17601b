package chunking

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// language bundles a tree-sitter grammar with the node types that mark
// a syntactic boundary worth splitting on for that language.
type language struct {
	name          string
	grammar       *sitter.Language
	boundaryTypes map[string]bool
}

var extensionLanguages = map[string]language{
	".go": {name: "go", grammar: golang.GetLanguage(), boundaryTypes: set("function_declaration", "method_declaration", "type_declaration")},
	".py": {name: "python", grammar: python.GetLanguage(), boundaryTypes: set("function_definition", "class_definition")},
	".js": {name: "javascript", grammar: javascript.GetLanguage(), boundaryTypes: set("function_declaration", "class_declaration", "method_definition")},
	".jsx": {name: "javascript", grammar: javascript.GetLanguage(), boundaryTypes: set("function_declaration", "class_declaration", "method_definition")},
	".ts": {name: "typescript", grammar: typescript.GetLanguage(), boundaryTypes: set("function_declaration", "class_declaration", "method_definition", "interface_declaration")},
	".tsx": {name: "typescript", grammar: typescript.GetLanguage(), boundaryTypes: set("function_declaration", "class_declaration", "method_definition", "interface_declaration")},
}

func set(vals ...string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
}

// languageForPath maps a file extension to a supported language,
// mirroring spec.md §4.3's "select a language by file extension
// (mapping in §6)".
func languageForPath(path string) (language, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extensionLanguages[ext]
	return lang, ok
}
