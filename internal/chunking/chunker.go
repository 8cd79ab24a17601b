package chunking

import (
	"strings"
)

// Config holds the tunable-but-fixed-per-deployment constants from
// spec.md §4.3.
type Config struct {
	ChunkSize            int
	ChunkOverlap         int
	MinTokensForChunking int
}

// DefaultConfig returns the constants named directly in spec.md §4.3.
func DefaultConfig() Config {
	return Config{ChunkSize: 512, ChunkOverlap: 64, MinTokensForChunking: 600}
}

// Chunker splits document content into token-budgeted pieces, using a
// language-aware syntactic splitter for recognized code and a generic
// recursive splitter otherwise.
type Chunker struct {
	cfg       Config
	tokenizer *Tokenizer
	code      *codeSplitter
}

// New builds a Chunker. tokenizer is shared so every caller in the
// process gates chunk boundaries against the same deterministic model.
func New(cfg Config, tokenizer *Tokenizer) *Chunker {
	return &Chunker{cfg: cfg, tokenizer: tokenizer, code: newCodeSplitter(tokenizer, cfg)}
}

// ChunkCode implements chunk_code: below MinTokensForChunking returns
// the content whole; otherwise picks a language by file extension and
// defers to the syntax-aware splitter, falling back to ChunkText for
// unsupported extensions.
func (c *Chunker) ChunkCode(content, path string) []string {
	if c.tokenizer.Count(content) < c.cfg.MinTokensForChunking {
		return []string{content}
	}
	lang, ok := languageForPath(path)
	if !ok {
		return c.ChunkText(content)
	}
	chunks, ok := c.code.split(content, lang)
	if !ok {
		return c.ChunkText(content)
	}
	return chunks
}

// ChunkText implements chunk_text: same token gate, then a split by
// paragraphs, falling back to lines when there is at most one paragraph,
// packed with an overlap tail of up to ChunkOverlap tokens between pieces.
// There is no sentence-level split: a single paragraph or line longer
// than ChunkSize stays one piece.
func (c *Chunker) ChunkText(content string) []string {
	if c.tokenizer.Count(content) < c.cfg.MinTokensForChunking {
		return []string{content}
	}
	units := splitParagraphs(content)
	if len(units) <= 1 {
		units = splitLines(content)
	}
	return c.greedyAccumulate(units, "\n\n")
}

// greedyAccumulate packs units (paragraphs/lines/sentences) into chunks
// that target ChunkSize tokens, carrying an overlap tail of up to
// ChunkOverlap tokens from the end of the previous chunk into the next.
// Guarantees: returns ≥1 chunk; no chunk exceeds ~2× ChunkSize tokens
// (a single oversized unit is kept whole rather than further split).
func (c *Chunker) greedyAccumulate(units []string, joiner string) []string {
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0
	overlapTail := ""

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		overlapTail = c.tokenizer.TrailingByTokens(current.String(), c.cfg.ChunkOverlap)
		current.Reset()
		currentTokens = 0
		if overlapTail != "" {
			current.WriteString(overlapTail)
			current.WriteString(joiner)
			currentTokens = c.tokenizer.Count(overlapTail)
		}
	}

	for _, unit := range units {
		unitTokens := c.tokenizer.Count(unit)
		if currentTokens > 0 && currentTokens+unitTokens > c.cfg.ChunkSize {
			flush()
		}
		current.WriteString(unit)
		current.WriteString(joiner)
		currentTokens += unitTokens
		if currentTokens >= c.cfg.ChunkSize*2 {
			flush()
		}
	}
	flush()

	if len(chunks) == 0 {
		return []string{strings.Join(units, joiner)}
	}
	return chunks
}

func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitLines(content string) []string {
	raw := strings.Split(content, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
