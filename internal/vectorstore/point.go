package vectorstore

import (
	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

// buildPayload assembles the full Qdrant payload for one prepared chunk
// of document d: the reserved document fields, the caller's metadata
// (flattened), the numeric Ts mirrors of createdAt/updatedAt (spec.md
// §3 StoredChunk, §4.8 step 5), and the chunk bookkeeping fields
// (_originalContent, _contentHash, chunkIndex, totalChunks, parentDocId
// for multi-chunk docs).
func buildPayload(source types.Source, d *types.Document, c preparedChunk) map[string]*qdrant.Value {
	payload := metadataToPayload(d.Metadata)

	payload["id"] = stringValue(d.ID)
	payload["source"] = stringValue(string(source))
	if d.Type != "" {
		payload["type"] = stringValue(d.Type)
	}
	if d.Title != "" {
		payload["title"] = stringValue(d.Title)
	}
	if d.CreatedAt != "" {
		payload["createdAt"] = stringValue(d.CreatedAt)
		if ms, ok := timestampMillis(d.CreatedAt); ok {
			payload["createdAtTs"] = intValue(ms)
		}
	}
	if d.UpdatedAt != "" {
		payload["updatedAt"] = stringValue(d.UpdatedAt)
		if ms, ok := timestampMillis(d.UpdatedAt); ok {
			payload["updatedAtTs"] = intValue(ms)
		}
	}
	if d.ParentID != "" {
		payload["parentId"] = stringValue(d.ParentID)
	}

	payload["_originalContent"] = stringValue(truncateForDisplay(c.raw))
	payload["_contentHash"] = stringValue(c.hash)

	if c.totalChunks > 1 {
		payload["chunkIndex"] = intValue(int64(c.chunkIndex))
		payload["totalChunks"] = intValue(int64(c.totalChunks))
		payload["parentDocId"] = stringValue(d.ID)
	}

	return payload
}

// storedChunk is the decoded view of one Qdrant point used by search and
// navigation.
type storedChunk struct {
	id          string
	source      types.Source
	content     string // raw chunk text from _originalContent; the header+chunk embed text is not stored
	displayText string // _originalContent
	metadata    types.Metadata
	parentDocID string
	chunkIndex  int
	totalChunks int
	score       float64
}

func decodePayload(id string, payload map[string]*qdrant.Value, score float64) storedChunk {
	sc := storedChunk{
		id:          id,
		displayText: getString(payload, "_originalContent"),
		metadata:    make(types.Metadata, len(payload)),
		score:       score,
	}
	sc.source = types.Source(getString(payload, "source"))
	sc.parentDocID = getString(payload, "parentDocId")
	sc.chunkIndex = int(getInt(payload, "chunkIndex"))
	sc.totalChunks = int(getInt(payload, "totalChunks"))
	sc.content = sc.displayText

	reserved := map[string]bool{
		"_originalContent": true, "_contentHash": true,
		"chunkIndex": true, "totalChunks": true, "parentDocId": true,
	}
	for k, v := range payload {
		if reserved[k] {
			continue
		}
		if mv, ok := payloadValueToMetadata(v); ok {
			sc.metadata[k] = mv
		}
	}
	return sc
}

func payloadValueToMetadata(v *qdrant.Value) (types.Value, bool) {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return types.StringValue(kind.StringValue), true
	case *qdrant.Value_IntegerValue:
		return types.NumberValue(float64(kind.IntegerValue)), true
	case *qdrant.Value_DoubleValue:
		return types.NumberValue(kind.DoubleValue), true
	case *qdrant.Value_BoolValue:
		return types.BoolValue(kind.BoolValue), true
	case *qdrant.Value_ListValue:
		list := make([]types.Value, 0, len(kind.ListValue.Values))
		for _, e := range kind.ListValue.Values {
			if mv, ok := payloadValueToMetadata(e); ok {
				list = append(list, mv)
			}
		}
		return types.ListValue(list), true
	default:
		return types.Value{}, false
	}
}

func (sc storedChunk) toSearchResult() types.SearchResult {
	return types.SearchResult{
		ID:       sc.id,
		Source:   sc.source,
		Content:  sc.content,
		Metadata: sc.metadata,
		Score:    sc.score,
	}
}
