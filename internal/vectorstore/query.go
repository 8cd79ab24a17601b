package vectorstore

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

// queryVector runs a nearest-neighbor search against one source's
// collection (spec.md §4.10 step 3, vector branch): score = max(0, 1 - distance),
// which for cosine-configured collections is exactly the point's reported score.
func (s *Store) queryVector(ctx context.Context, source types.Source, embedding []float64, fetchLimit int, filter *qdrant.Filter) ([]storedChunk, error) {
	var points []*qdrant.ScoredPoint
	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		qctx, cancel := s.timeoutCtx(ctx)
		defer cancel()
		res, err := s.client.Query(qctx, &qdrant.QueryPoints{
			CollectionName: collectionName(source),
			Query:          qdrant.NewQuery(float64ToFloat32(embedding)...),
			Limit:          qdrant.PtrOf(uint64(fetchLimit)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filter,
		})
		points = res
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query vector(%s): %w", source, err)
	}

	out := make([]storedChunk, 0, len(points))
	for _, p := range points {
		score := math.Max(0, float64(p.GetScore()))
		out = append(out, decodePayload(pointIDString(p.GetId()), p.GetPayload(), score))
	}
	return out, nil
}

// queryKeyword implements spec.md §4.10 step 3's keyword branch: tokenize
// the query to lowercase words of length > 1, scroll candidates matching
// all terms via substring containment, then rank in-memory by
// 0.6·coverage + 0.3·min(1, tfSum/matched/3) + 0.1·(1/(1+ln(docLen/2000))).
func (s *Store) queryKeyword(ctx context.Context, source types.Source, query string, fetchLimit int, filter *qdrant.Filter) ([]storedChunk, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var points []*qdrant.RetrievedPoint
	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		qctx, cancel := s.timeoutCtx(ctx)
		defer cancel()
		res, err := s.client.Scroll(qctx, &qdrant.ScrollPoints{
			CollectionName: collectionName(source),
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(scrollCandidateLimit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		points = res
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query keyword(%s): %w", source, err)
	}

	var scored []storedChunk
	for _, p := range points {
		sc := decodePayload(pointIDString(p.GetId()), p.GetPayload(), 0)
		body := strings.ToLower(sc.content)
		if body == "" {
			continue
		}

		matched := 0
		tfSum := 0.0
		for _, term := range terms {
			count := strings.Count(body, term)
			if count > 0 {
				matched++
				tfSum += 1 + math.Log(float64(count))
			}
		}
		if matched < len(terms) {
			continue
		}

		coverage := float64(matched) / float64(len(terms))
		docLen := len(body)
		score := 0.6*coverage + 0.3*math.Min(1, tfSum/float64(matched)/3) + 0.1*(1/(1+math.Log(math.Max(1, float64(docLen)/2000))))
		sc.score = score
		scored = append(scored, sc)
	}

	sortByScoreDesc(scored)
	if len(scored) > fetchLimit {
		scored = scored[:fetchLimit]
	}
	return scored, nil
}

// scrollCandidateLimit bounds how many points are scrolled per source for
// in-memory keyword scoring before a $contains filter is available.
const scrollCandidateLimit = 1000

func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:'\"()[]{}")
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func sortByScoreDesc(chunks []storedChunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j-1].score < chunks[j].score; j-- {
			chunks[j-1], chunks[j] = chunks[j], chunks[j-1]
		}
	}
}
