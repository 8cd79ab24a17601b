package chunking

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// codeSplitter walks a tree-sitter parse tree to find top-level
// function/class/type boundaries, then greedily packs those boundary
// spans into chunks the same way Chunker.greedyAccumulate packs
// paragraphs, so code chunks still respect syntactic edges instead of
// cutting mid-function.
type codeSplitter struct {
	tokenizer *Tokenizer
	cfg       Config
}

func newCodeSplitter(tokenizer *Tokenizer, cfg Config) *codeSplitter {
	return &codeSplitter{tokenizer: tokenizer, cfg: cfg}
}

// split parses content with lang's grammar and returns chunks aligned
// to symbol boundaries. ok is false if parsing failed or produced no
// recognizable boundaries, signaling the caller to fall back to
// chunk_text.
func (cs *codeSplitter) split(content string, lang language) ([]string, bool) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang.grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil || tree == nil {
		return nil, false
	}
	root := tree.RootNode()

	spans := topLevelSpans(root)
	if len(spans) == 0 {
		return nil, false
	}
	if !anyBoundaryPresent(root, lang.boundaryTypes) {
		return nil, false
	}

	src := []byte(content)
	units := make([]string, 0, len(spans))
	for _, sp := range spans {
		units = append(units, string(src[sp.start:sp.end]))
	}

	joined := cs.accumulate(units)
	return joined, true
}

type span struct{ start, end uint32 }

// topLevelSpans returns the byte span of every direct child of root —
// package clauses, imports, and standalone comments included — so the
// concatenation of units always covers the full source (spec.md §4.3
// coverage guarantee).
func topLevelSpans(root *sitter.Node) []span {
	var spans []span
	childCount := int(root.ChildCount())
	for i := 0; i < childCount; i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		spans = append(spans, span{start: child.StartByte(), end: child.EndByte()})
	}
	return spans
}

// anyBoundaryPresent reports whether root contains at least one node of
// a recognized symbol-defining type; without one, syntax-aware
// splitting has nothing meaningful to align to and the caller should
// fall back to chunk_text.
func anyBoundaryPresent(root *sitter.Node, boundaryTypes map[string]bool) bool {
	found := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found || n == nil {
			return
		}
		if boundaryTypes[n.Type()] {
			found = true
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return found
}

// accumulate packs boundary-aligned units into token-budgeted chunks
// with an overlap tail, mirroring Chunker.greedyAccumulate.
func (cs *codeSplitter) accumulate(units []string) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0
	overlapTail := ""

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		overlapTail = cs.tokenizer.TrailingByTokens(current.String(), cs.cfg.ChunkOverlap)
		current.Reset()
		currentTokens = 0
		if overlapTail != "" {
			current.WriteString(overlapTail)
			current.WriteString("\n\n")
			currentTokens = cs.tokenizer.Count(overlapTail)
		}
	}

	for _, unit := range units {
		unitTokens := cs.tokenizer.Count(unit)
		if currentTokens > 0 && currentTokens+unitTokens > cs.cfg.ChunkSize {
			flush()
		}
		current.WriteString(unit)
		current.WriteString("\n\n")
		currentTokens += unitTokens
		if currentTokens >= cs.cfg.ChunkSize*2 {
			flush()
		}
	}
	flush()

	if len(chunks) == 0 {
		return []string{strings.Join(units, "\n\n")}
	}
	return chunks
}
