package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

// recencyHalfLives holds the per-source half-life (days) used by the
// recency boost of spec.md §4.10 step 5.
var recencyHalfLives = map[types.Source]float64{
	types.SourceSlack:      7,
	types.SourceGmail:      14,
	types.SourceCalendar:   14,
	types.SourceJira:       30,
	types.SourceGitHub:     60,
	types.SourceConfluence: 90,
	types.SourceDrive:      90,
}

const defaultHalfLifeDays = 30

// rrfK is Reciprocal Rank Fusion's rank-offset constant (spec.md §4.10
// step 3, hybrid branch).
const rrfK = 60

// Search implements the full hybrid retrieval pipeline of spec.md §4.10:
// per-source parallel vector/keyword/hybrid queries, chunk deduplication
// by parent document, and the relevance/title/recency post-retrieval
// boosts, finishing with a total sort on score desc, id asc.
func (s *Store) Search(ctx context.Context, q types.SearchQuery) (types.SearchResults, error) {
	if s.metrics != nil {
		start := time.Now()
		defer func() { s.metrics.SearchDuration.Observe(time.Since(start).Seconds()) }()
	}

	sources := q.Sources
	if len(sources) == 0 {
		sources = types.AllSources
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	fetchLimit := limit + q.Offset
	if fetchLimit <= 0 {
		fetchLimit = limit
	}

	filter := buildWhereFilter(q.Where, q.StartDate, q.EndDate)

	var embedding []float64
	if q.SearchType != types.SearchKeyword {
		var err error
		embedding, err = s.embedder.Generate(ctx, q.Query)
		if err != nil {
			return types.SearchResults{}, fmt.Errorf("vectorstore: search: embed query: %w", err)
		}
	}

	type sourceResult struct {
		source types.Source
		chunks []storedChunk
		err    error
	}
	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source types.Source) {
			defer wg.Done()
			chunks, err := s.searchOneSource(ctx, source, q, embedding, fetchLimit, filter)
			results[i] = sourceResult{source: source, chunks: chunks, err: err}
		}(i, source)
	}
	wg.Wait()

	var all []storedChunk
	for _, r := range results {
		if r.err != nil {
			s.logger.Warn("vectorstore: search source failed", "source", r.source, "error", r.err)
			continue
		}
		all = append(all, r.chunks...)
	}

	all = dedupeChunks(all)
	applyPostRetrievalBoosts(all, q.Query)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id < all[j].id
	})

	total := len(all)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	out := make([]types.SearchResult, 0, end-start)
	for _, c := range all[start:end] {
		r := c.toSearchResult()
		if s.metrics != nil {
			s.metrics.SearchScores.Observe(r.Score)
		}
		out = append(out, r)
	}
	return types.SearchResults{Results: out, Total: total}, nil
}

func (s *Store) searchOneSource(ctx context.Context, source types.Source, q types.SearchQuery, embedding []float64, fetchLimit int, filter *qdrant.Filter) ([]storedChunk, error) {
	switch q.SearchType {
	case types.SearchKeyword:
		return s.queryKeyword(ctx, source, q.Query, fetchLimit, filter)
	case types.SearchHybrid:
		vecResults, err := s.queryVector(ctx, source, embedding, fetchLimit*2, filter)
		if err != nil {
			return nil, err
		}
		kwResults, err := s.queryKeyword(ctx, source, q.Query, fetchLimit*2, filter)
		if err != nil {
			return nil, err
		}
		return fuseRRF(vecResults, kwResults), nil
	default:
		return s.queryVector(ctx, source, embedding, fetchLimit, filter)
	}
}

// fuseRRF combines two ranked lists with Reciprocal Rank Fusion, k=60,
// normalizing each fused score by maxRrf = 2/(k+1) (spec.md §4.10 step 3).
func fuseRRF(lists ...[]storedChunk) []storedChunk {
	rrf := make(map[string]float64)
	byID := make(map[string]storedChunk)
	for _, list := range lists {
		for rank, c := range list {
			rrf[c.id] += 1.0 / float64(rrfK+rank+1)
			if _, ok := byID[c.id]; !ok {
				byID[c.id] = c
			}
		}
	}
	maxRrf := 2.0 / float64(rrfK+1)

	out := make([]storedChunk, 0, len(rrf))
	for id, score := range rrf {
		c := byID[id]
		c.score = score / maxRrf
		out = append(out, c)
	}
	sortByScoreDesc(out)
	return out
}

// dedupeChunks implements spec.md §4.10 step 4: for chunks carrying a
// parentDocID, keep only the highest-scoring chunk per parent and apply
// a small multi-chunk-match boost; chunks without a parent pass through.
func dedupeChunks(chunks []storedChunk) []storedChunk {
	bestByParent := make(map[string]storedChunk)
	countByParent := make(map[string]int)
	var passthrough []storedChunk

	for _, c := range chunks {
		if c.parentDocID == "" {
			passthrough = append(passthrough, c)
			continue
		}
		countByParent[c.parentDocID]++
		if best, ok := bestByParent[c.parentDocID]; !ok || c.score > best.score {
			bestByParent[c.parentDocID] = c
		}
	}

	out := passthrough
	for parentID, c := range bestByParent {
		count := countByParent[parentID]
		if count > 1 {
			c.score *= 1 + math.Min(0.15, 0.05*math.Log(float64(count)))
		}
		out = append(out, c)
	}
	return out
}

// applyPostRetrievalBoosts implements spec.md §4.10 step 5's relevance,
// title-match, and recency adjustments, finishing with a [0,1] clamp.
func applyPostRetrievalBoosts(chunks []storedChunk, query string) {
	lowerQuery := strings.ToLower(query)
	queryTerms := tokenizeQuery(query)

	for i := range chunks {
		c := &chunks[i]

		if rel, ok := numberMetadata(c.metadata, "relevance_score"); ok {
			c.score *= 0.85 + rel*0.35
		}

		title := strings.ToLower(firstNonEmpty(c.metadata.GetString("title"), c.metadata.GetString("subject")))
		if title != "" {
			if lowerQuery != "" && strings.Contains(title, lowerQuery) {
				c.score *= 1.3
			} else if len(queryTerms) > 0 {
				matched := 0
				for _, t := range queryTerms {
					if strings.Contains(title, t) {
						matched++
					}
				}
				coverage := float64(matched) / float64(len(queryTerms))
				c.score *= 1 + 0.2*coverage
			}
		}

		halfLife, ok := recencyHalfLives[c.source]
		if !ok {
			halfLife = defaultHalfLifeDays
		}
		if ts := chunkTimestamp(c.metadata); !ts.IsZero() {
			daysSince := time.Since(ts).Hours() / 24
			recency := math.Pow(0.5, daysSince/halfLife)
			c.score *= 1 + 0.08*recency
		}

		c.score = clamp01(c.score)
	}
}

func numberMetadata(m types.Metadata, key string) (float64, bool) {
	v, ok := m[key]
	if !ok || v.Num == nil {
		return 0, false
	}
	return *v.Num, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func chunkTimestamp(m types.Metadata) time.Time {
	for _, key := range []string{"updatedAt", "createdAt", "timestamp", "date", "start"} {
		if raw := m.GetString(key); raw != "" {
			for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02"} {
				if t, err := time.Parse(layout, raw); err == nil {
					return t
				}
			}
		}
	}
	return time.Time{}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
