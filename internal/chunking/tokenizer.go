// Package chunking implements the token-budget, language-aware content
// splitter described in spec.md §4.3: chunk_code and chunk_text, both
// gated by a fixed deterministic tokenizer model.
package chunking

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens the same deterministic way regardless of
// caller, so two runs over identical content always gate the same way
// against MinTokensForChunking.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// NewTokenizer returns a Tokenizer backed by the cl100k_base encoding —
// the same encoding used by the embedding model family this store
// targets (text-embedding-3-small / ada-002).
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the token length of text.
func (t *Tokenizer) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// TrailingByTokens returns the longest suffix of text holding at most
// tokens tokens, without re-decoding byte-for-byte; used by the overlap-tail computation where
// we need the last N tokens' worth of trailing text. It works by binary
// search over byte length using Count, good enough for the sizes chunks
// operate at (≤ 2× chunkSize tokens).
func (t *Tokenizer) TrailingByTokens(text string, tokens int) string {
	if tokens <= 0 || text == "" {
		return ""
	}
	if t.Count(text) <= tokens {
		return text
	}
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Count(text[mid:]) > tokens {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return text[lo:]
}
