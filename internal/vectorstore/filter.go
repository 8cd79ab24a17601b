package vectorstore

import (
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// buildWhereFilter translates a search request's equality where-clause
// plus an optional createdAtTs range into a Qdrant Filter (spec.md
// §4.10 step 1): per-key equality AND'd together, plus
// createdAtTs >= startDate and createdAtTs <= endDate+23:59:59.999.
func buildWhereFilter(where map[string]string, startDate, endDate *time.Time) *qdrant.Filter {
	var conditions []*qdrant.Condition
	for key, value := range where {
		conditions = append(conditions, fieldEquals(key, value))
	}
	if startDate != nil {
		conditions = append(conditions, fieldGTE("createdAtTs", float64(startDate.UnixMilli())))
	}
	if endDate != nil {
		endOfDay := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 23, 59, 59, 999000000, endDate.Location())
		conditions = append(conditions, fieldLTE("createdAtTs", float64(endOfDay.UnixMilli())))
	}
	if len(conditions) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: conditions}
}

func fieldEquals(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func fieldGTE(key string, v float64) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Range: &qdrant.Range{Gte: qdrant.PtrOf(v)},
			},
		},
	}
}

func fieldLTE(key string, v float64) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Range: &qdrant.Range{Lte: qdrant.PtrOf(v)},
			},
		},
	}
}

func parentFilter(parentDocID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{fieldEquals("parentDocId", parentDocID)}}
}
