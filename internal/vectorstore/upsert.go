package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

// embedBatchSize bounds a single embedding API call (spec.md §5
// "embedding API batches up to 100 strings").
const embedBatchSize = 100

// Upsert implements the chunk-level content-addressed write pipeline of
// spec.md §4.8: chunk every document, prefetch existing chunk hashes in
// batches of 100, and partition into a re-embedded upsert path and a
// metadata-only update path that skips the embedder entirely.
func (s *Store) Upsert(ctx context.Context, source types.Source, docs []types.Document) (err error) {
	if len(docs) == 0 {
		return nil
	}

	if s.metrics != nil {
		start := time.Now()
		defer func() {
			s.metrics.UpsertDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				s.metrics.UpsertFailures.Inc()
			}
		}()
	}

	var allChunks []preparedChunk
	docByID := make(map[string]*types.Document, len(docs))
	for i := range docs {
		d := &docs[i]
		docByID[d.ID] = d
		allChunks = append(allChunks, s.prepareChunks(source, d)...)
	}

	existing, err := s.fetchExistingHashes(ctx, source, allChunks)
	if err != nil {
		return fmt.Errorf("vectorstore: upsert(%s): prefetch hashes: %w", source, err)
	}

	var toEmbed []preparedChunk
	var toUpdate []preparedChunk
	for _, c := range allChunks {
		if prior, ok := existing[c.pointID]; ok && prior == c.hash {
			toUpdate = append(toUpdate, c)
		} else {
			toEmbed = append(toEmbed, c)
		}
	}

	if len(toEmbed) > 0 {
		if err := s.embedAndUpsert(ctx, source, docByID, toEmbed); err != nil {
			return fmt.Errorf("vectorstore: upsert(%s): %w", source, err)
		}
	}
	if len(toUpdate) > 0 {
		if err := s.updatePayloadsOnly(ctx, source, docByID, toUpdate); err != nil {
			return fmt.Errorf("vectorstore: upsert(%s): metadata-only update: %w", source, err)
		}
	}

	s.logger.Info("vectorstore: upsert complete", "source", source,
		"documents", len(docs), "chunks_embedded", len(toEmbed), "chunks_metadata_only", len(toUpdate))
	return nil
}

// fetchExistingHashes batch-gets the current _contentHash for every
// candidate point id, 100 at a time (spec.md §4.8 step 4).
func (s *Store) fetchExistingHashes(ctx context.Context, source types.Source, chunks []preparedChunk) (map[string]string, error) {
	out := make(map[string]string, len(chunks))
	for start := 0; start < len(chunks); start += getBatchSize {
		end := start + getBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		ids := make([]*qdrant.PointId, len(batch))
		for i, c := range batch {
			ids[i] = pointIDFromString(c.pointID)
		}

		qctx, cancel := s.timeoutCtx(ctx)
		points, err := s.client.Get(qctx, &qdrant.GetPoints{
			CollectionName: collectionName(source),
			Ids:            ids,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		cancel()
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			id := pointIDString(p.GetId())
			out[id] = getString(p.GetPayload(), "_contentHash")
		}
	}
	return out, nil
}

func (s *Store) embedAndUpsert(ctx context.Context, source types.Source, docByID map[string]*types.Document, chunks []preparedChunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.embedText
		}
		vectors, err := s.embedder.GenerateBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch: expected %d vectors, got %d", len(batch), len(vectors))
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for i, c := range batch {
			d := docByID[c.docID]
			points[i] = &qdrant.PointStruct{
				Id:      pointIDFromString(c.pointID),
				Vectors: qdrant.NewVectors(float64ToFloat32(vectors[i])...),
				Payload: buildPayload(source, d, c),
			}
		}

		err = s.cb.Execute(ctx, func(ctx context.Context) error {
			qctx, cancel := s.timeoutCtx(ctx)
			defer cancel()
			_, err := s.client.Upsert(qctx, &qdrant.UpsertPoints{
				CollectionName: collectionName(source),
				Points:         points,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("upsert points: %w", err)
		}
	}
	return nil
}

func (s *Store) updatePayloadsOnly(ctx context.Context, source types.Source, docByID map[string]*types.Document, chunks []preparedChunk) error {
	for start := 0; start < len(chunks); start += getBatchSize {
		end := start + getBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		for _, c := range batch {
			d := docByID[c.docID]
			payload := buildPayload(source, d, c)
			err := s.cb.Execute(ctx, func(ctx context.Context) error {
				qctx, cancel := s.timeoutCtx(ctx)
				defer cancel()
				_, err := s.client.SetPayload(qctx, &qdrant.SetPayloadPoints{
					CollectionName: collectionName(source),
					Payload:        payload,
					PointsSelector: pointsSelector(pointIDFromString(c.pointID)),
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("set payload(%s): %w", c.pointID, err)
			}
		}
	}
	return nil
}

func pointIDString(id *qdrant.PointId) string {
	if u, ok := id.GetPointIdOptions().(*qdrant.PointId_Uuid); ok {
		return u.Uuid
	}
	return id.GetNum().String()
}
