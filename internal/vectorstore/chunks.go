package vectorstore

import (
	"knowledge-collector/pkg/types"
)

// preparedChunk is one chunk of a document ready for the existing-hash
// prefetch and embed/update partition of spec.md §4.8 steps 1-3.
type preparedChunk struct {
	pointID     string
	docID       string
	chunkIndex  int
	totalChunks int
	raw         string // pre-header chunk content
	embedText   string // contextHeader + "\n\n" + raw
	hash        string // sha256(raw)
}

// prepareChunks applies the chunking decision of spec.md §4.8 step 1:
// a connector-supplied PreChunked list wins when it has more than one
// entry, otherwise the store's own chunk_content splits the sanitized
// content.
func (s *Store) prepareChunks(source types.Source, d *types.Document) []preparedChunk {
	content := sanitizeText(d.Content)

	var raws []string
	if len(d.PreChunked) > 1 {
		raws = make([]string, len(d.PreChunked))
		for i, c := range d.PreChunked {
			raws[i] = sanitizeText(c.Content)
		}
	} else {
		raws = s.chunker.ChunkText(content)
	}

	header := buildContextHeader(source, d)
	total := len(raws)
	out := make([]preparedChunk, total)
	for i, raw := range raws {
		var pointID string
		if total == 1 {
			pointID = docPointID(d.ID)
		} else {
			pointID = chunkPointID(d.ID, i)
		}
		out[i] = preparedChunk{
			pointID:     pointID,
			docID:       d.ID,
			chunkIndex:  i,
			totalChunks: total,
			raw:         raw,
			embedText:   header + "\n\n" + raw,
			hash:        contentHash(raw),
		}
	}
	return out
}
