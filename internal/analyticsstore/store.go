// Package analyticsstore implements the bounded run-history and daily
// counter bookkeeping described in spec.md §4.2. It is the sole writer
// of run history.
package analyticsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"knowledge-collector/internal/config"
	"knowledge-collector/pkg/types"
)

// maxRunsPerSource bounds the run-history list length (spec.md §8
// "Analytics bound").
const maxRunsPerSource = 100

// dailyTTL is the retention window for per-day counters.
const dailyTTL = 90 * 24 * time.Hour

// Store is a Redis-backed implementation of the analytics bookkeeping.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New connects to Redis and returns a ready Store.
func New(cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("analyticsstore: failed to connect to redis: %w", err)
	}
	return newWithClient(client, cfg.KeyPrefix), nil
}

func newWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "index:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) runsKey(source types.Source) string {
	return s.keyPrefix + "analytics:runs:" + string(source)
}

func (s *Store) statsKey(source types.Source) string {
	return s.keyPrefix + "analytics:stats:" + string(source)
}

func (s *Store) dailyKey(source types.Source, date string) string {
	return s.keyPrefix + "analytics:daily:" + string(source) + ":" + date
}

// RecordRunStart appends a running entry to the bounded run-history
// list and returns its generated run id.
func (s *Store) RecordRunStart(ctx context.Context, source types.Source) (string, error) {
	runID := uuid.NewString()
	run := types.IndexingRun{
		ID:        runID,
		Source:    source,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Status:    types.RunRunning,
	}
	b, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("analyticsstore: encode run: %w", err)
	}

	key := s.runsKey(source)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, maxRunsPerSource-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("analyticsstore: record_run_start(%s): %w", source, err)
	}
	return runID, nil
}

// RecordRunComplete replaces the in-flight run entry matching
// details.ID in place if found, otherwise pushes a new terminal entry;
// then updates the aggregate SourceStats and the day's counters.
func (s *Store) RecordRunComplete(ctx context.Context, source types.Source, details types.IndexingRun) error {
	key := s.runsKey(source)
	raws, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("analyticsstore: record_run_complete(%s): list runs: %w", source, err)
	}

	replaced := false
	for i, raw := range raws {
		var run types.IndexingRun
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			continue
		}
		if run.ID == details.ID {
			b, err := json.Marshal(details)
			if err != nil {
				return fmt.Errorf("analyticsstore: encode run: %w", err)
			}
			if err := s.client.LSet(ctx, key, int64(i), b).Err(); err != nil {
				return fmt.Errorf("analyticsstore: replace run(%s): %w", details.ID, err)
			}
			replaced = true
			break
		}
	}
	if !replaced {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("analyticsstore: encode run: %w", err)
		}
		pipe := s.client.TxPipeline()
		pipe.LPush(ctx, key, b)
		pipe.LTrim(ctx, key, 0, maxRunsPerSource-1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("analyticsstore: push terminal run(%s): %w", source, err)
		}
	}

	if err := s.updateStats(ctx, source, details); err != nil {
		return err
	}
	return s.incrementDaily(ctx, source, details)
}

func (s *Store) updateStats(ctx context.Context, source types.Source, details types.IndexingRun) error {
	raw, err := s.client.Get(ctx, s.statsKey(source)).Result()
	var stats types.SourceStats
	if errors.Is(err, redis.Nil) {
		stats = types.SourceStats{Source: source}
	} else if err != nil {
		return fmt.Errorf("analyticsstore: load stats(%s): %w", source, err)
	} else if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return fmt.Errorf("analyticsstore: decode stats(%s): %w", source, err)
	}

	stats.TotalRuns++
	if details.Status == types.RunCompleted {
		stats.SuccessfulRuns++
		stats.LastSuccessAt = details.CompletedAt
	} else if details.Status == types.RunError {
		stats.FailedRuns++
	}
	stats.LastRunAt = details.CompletedAt
	stats.TotalDocumentsProcessed += int64(details.DocumentsProcessed)
	if details.DurationMs > 0 {
		if stats.TotalRuns <= 1 {
			stats.AverageDurationMs = float64(details.DurationMs)
		} else {
			n := float64(stats.TotalRuns)
			stats.AverageDurationMs = stats.AverageDurationMs + (float64(details.DurationMs)-stats.AverageDurationMs)/n
		}
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("analyticsstore: encode stats(%s): %w", source, err)
	}
	if err := s.client.Set(ctx, s.statsKey(source), b, 0).Err(); err != nil {
		return fmt.Errorf("analyticsstore: save stats(%s): %w", source, err)
	}
	return nil
}

func (s *Store) incrementDaily(ctx context.Context, source types.Source, details types.IndexingRun) error {
	date := time.Now().UTC().Format("2006-01-02")
	key := s.dailyKey(source, date)

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "runs", 1)
	pipe.HIncrBy(ctx, key, "documents", int64(details.DocumentsProcessed))
	if details.Status == types.RunError {
		pipe.HIncrBy(ctx, key, "errors", 1)
	}
	pipe.Expire(ctx, key, dailyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("analyticsstore: increment daily(%s, %s): %w", source, date, err)
	}
	return nil
}

// GetRecentRuns returns up to limit runs for source, deduplicated by
// (source, startedAt) preferring a terminal entry over a running one,
// newest first.
func (s *Store) GetRecentRuns(ctx context.Context, source types.Source, limit int) ([]types.IndexingRun, error) {
	raws, err := s.client.LRange(ctx, s.runsKey(source), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("analyticsstore: get_recent_runs(%s): %w", source, err)
	}

	byStart := make(map[string]types.IndexingRun, len(raws))
	for _, raw := range raws {
		var run types.IndexingRun
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			continue
		}
		existing, ok := byStart[run.StartedAt]
		if !ok || (existing.Status == types.RunRunning && run.Status != types.RunRunning) {
			byStart[run.StartedAt] = run
		}
	}

	runs := make([]types.IndexingRun, 0, len(byStart))
	for _, run := range byStart {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt > runs[j].StartedAt })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetDailyStats returns `days` zero-filled daily buckets, oldest first.
func (s *Store) GetDailyStats(ctx context.Context, source types.Source, days int) ([]types.DailyCount, error) {
	out := make([]types.DailyCount, days)
	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		vals, err := s.client.HGetAll(ctx, s.dailyKey(source, date)).Result()
		if err != nil {
			return nil, fmt.Errorf("analyticsstore: get_daily_stats(%s, %s): %w", source, date, err)
		}
		out[i] = types.DailyCount{
			Date:      date,
			Runs:      parseInt64(vals["runs"]),
			Documents: parseInt64(vals["documents"]),
			Errors:    parseInt64(vals["errors"]),
		}
	}
	return out, nil
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// GetSystemStats aggregates per-source stats and a combined, globally
// sorted recent-runs feed across sources (spec.md §4.2 get_system_stats).
func (s *Store) GetSystemStats(ctx context.Context, sources []types.Source, topN int) (*types.SystemStats, error) {
	out := &types.SystemStats{PerSource: make(map[types.Source]*types.SourceStats, len(sources))}

	var combined []types.IndexingRun
	for _, source := range sources {
		raw, err := s.client.Get(ctx, s.statsKey(source)).Result()
		if errors.Is(err, redis.Nil) {
			out.PerSource[source] = &types.SourceStats{Source: source}
		} else if err != nil {
			return nil, fmt.Errorf("analyticsstore: get_system_stats: stats(%s): %w", source, err)
		} else {
			var stats types.SourceStats
			if err := json.Unmarshal([]byte(raw), &stats); err != nil {
				return nil, fmt.Errorf("analyticsstore: decode stats(%s): %w", source, err)
			}
			out.PerSource[source] = &stats
		}

		runs, err := s.GetRecentRuns(ctx, source, topN)
		if err != nil {
			return nil, err
		}
		combined = append(combined, runs...)
	}

	sort.Slice(combined, func(i, j int) bool { return combined[i].StartedAt > combined[j].StartedAt })
	if topN > 0 && len(combined) > topN {
		combined = combined[:topN]
	}
	out.RecentRuns = combined
	return out, nil
}
