package vectorstore

import (
	"time"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func boolValue(b bool) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: b}}
}

func doubleValue(f float64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}
}

func pointIDFromString(s string) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: s}}
}

// pointsSelector builds an explicit-id points selector, the shape every
// qdrant-go-client call site in the example pack constructs by hand.
func pointsSelector(ids ...*qdrant.PointId) *qdrant.PointsSelector {
	return &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{Ids: ids},
		},
	}
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

func getString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}

// metadataToPayload flattens a types.Metadata map into Qdrant scalar
// payload values; nested lists are joined with metadataValueToPayload's
// best scalar projection since Qdrant filters operate on scalars and
// keywords, not nested structures.
func metadataToPayload(m types.Metadata) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		if pv, ok := metadataValueToPayload(v); ok {
			out[k] = pv
		}
	}
	return out
}

func metadataValueToPayload(v types.Value) (*qdrant.Value, bool) {
	switch {
	case v.Str != nil:
		return stringValue(*v.Str), true
	case v.Num != nil:
		return doubleValue(*v.Num), true
	case v.Bool != nil:
		return boolValue(*v.Bool), true
	case v.List != nil:
		values := make([]*qdrant.Value, 0, len(v.List))
		for _, e := range v.List {
			if pv, ok := metadataValueToPayload(e); ok {
				values = append(values, pv)
			}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, true
	default:
		return nil, false
	}
}

// timestampMillis parses an RFC3339-ish date into epoch milliseconds,
// mirroring spec.md §4.8 step 5's createdAtTs/updatedAtTs derivation.
func timestampMillis(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
