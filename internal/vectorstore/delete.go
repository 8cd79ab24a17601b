package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/pkg/types"
)

// DeleteDocument removes a document's own points plus every point whose
// parentDocId equals it (spec.md §4.8 "Delete document").
func (s *Store) DeleteDocument(ctx context.Context, source types.Source, id string) error {
	children, err := s.scrollSource(ctx, source, parentFilter(id))
	if err != nil {
		return fmt.Errorf("vectorstore: delete(%s/%s): list children: %w", source, id, err)
	}

	ids := []string{docPointID(id)}
	for _, c := range children {
		if c.id != ids[0] {
			ids = append(ids, c.id)
		}
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, pid := range ids {
		pointIDs[i] = pointIDFromString(pid)
	}

	return s.cb.Execute(ctx, func(ctx context.Context) error {
		qctx, cancel := s.timeoutCtx(ctx)
		defer cancel()
		_, err := s.client.Delete(qctx, &qdrant.DeletePoints{
			CollectionName: collectionName(source),
			Points:         pointsSelector(pointIDs...),
		})
		return err
	})
}

// MigrateTimestamps implements spec.md §4.8's migrate_timestamps sweep:
// find entries missing createdAtTs but carrying createdAt, and backfill
// the numeric mirror without touching any other metadata.
func (s *Store) MigrateTimestamps(ctx context.Context, source types.Source) (int, error) {
	chunks, err := s.scrollSource(ctx, source, nil)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: migrate timestamps(%s): %w", source, err)
	}

	migrated := 0
	for _, c := range chunks {
		createdAt := c.metadata.GetString("createdAt")
		if createdAt == "" {
			continue
		}
		if _, has := c.metadata["createdAtTs"]; has {
			continue
		}
		ms, ok := timestampMillis(createdAt)
		if !ok {
			continue
		}

		err := s.cb.Execute(ctx, func(ctx context.Context) error {
			qctx, cancel := s.timeoutCtx(ctx)
			defer cancel()
			_, err := s.client.SetPayload(qctx, &qdrant.SetPayloadPoints{
				CollectionName: collectionName(source),
				Payload:        map[string]*qdrant.Value{"createdAtTs": intValue(ms)},
				PointsSelector: pointsSelector(pointIDFromString(c.id)),
			})
			return err
		})
		if err != nil {
			return migrated, fmt.Errorf("vectorstore: migrate timestamps(%s): set payload(%s): %w", source, c.id, err)
		}
		migrated++
	}
	return migrated, nil
}
