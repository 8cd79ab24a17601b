package vectorstore

import (
	"fmt"

	"github.com/google/uuid"
)

// chunkPointID derives a stable Qdrant point UUID from document docID
// and chunk index i (not from the chunk's content) — stable across runs so the
// same logical chunk always maps to the same point.
func chunkPointID(docID string, i int) string {
	return uuid.NewMD5(uuid.Nil, []byte(fmt.Sprintf("%s/chunk/%d", docID, i))).String()
}

// docPointID is the single-chunk id used when preChunked/chunk_content
// produced exactly one chunk, kept equal to chunkPointID(id, 0) so the
// two code paths are indistinguishable downstream.
func docPointID(docID string) string {
	return chunkPointID(docID, 0)
}
