package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"whoisindex/internal/domain"
)

const maxErrorLength = 4096

// StartRun inserts a running import for source and returns it.
func (l *Ledger) StartRun(ctx context.Context, source, archive string, patterns []string) (domain.ImportRun, error) {
	run := domain.ImportRun{
		ID:        uuid.NewString(),
		Source:    source,
		Archive:   archive,
		Patterns:  domain.PatternList(patterns),
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&run).Error; err != nil {
		return domain.ImportRun{}, fmt.Errorf("database: start run for %s: %w", source, err)
	}
	return run, nil
}

// FinishRun stores the final counters of a run. A non-nil runErr marks the run
// failed and keeps its message.
func (l *Ledger) FinishRun(ctx context.Context, id string, counters domain.RunCounters, runErr error) error {
	now := time.Now().UTC()
	status := domain.RunSucceeded
	message := ""
	if runErr != nil {
		status = domain.RunFailed
		message = runErr.Error()
		if len(message) > maxErrorLength {
			message = message[:maxErrorLength]
		}
	}

	res := l.db.WithContext(ctx).
		Model(&domain.ImportRun{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       status,
			"error":        message,
			"finished_at":  now,
			"records":      counters.Records,
			"ranges":       counters.Ranges,
			"buckets":      counters.Buckets,
			"set_members":  counters.SetMembers,
			"skipped":      counters.Skipped,
			"unrecognized": counters.Unrecognized,
			"flushes":      counters.Flushes,
		})
	if res.Error != nil {
		return fmt.Errorf("database: finish run %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("database: finish run %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// LatestRun returns the most recently started run of source.
func (l *Ledger) LatestRun(ctx context.Context, source string) (domain.ImportRun, bool, error) {
	var run domain.ImportRun
	err := l.db.WithContext(ctx).
		Where("source = ?", source).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ImportRun{}, false, nil
	}
	if err != nil {
		return domain.ImportRun{}, false, fmt.Errorf("database: latest run for %s: %w", source, err)
	}
	return run, true, nil
}

// ListRuns returns up to limit runs, newest first. An empty source lists all.
func (l *Ledger) ListRuns(ctx context.Context, source string, limit int) ([]domain.ImportRun, error) {
	query := l.db.WithContext(ctx).Order("started_at DESC")
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []domain.ImportRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("database: list runs: %w", err)
	}
	return runs, nil
}

// AbandonStaleRuns marks runs that are still running after olderThan as
// failed. Crashed processes leave such rows behind.
func (l *Ledger) AbandonStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := l.db.WithContext(ctx).
		Model(&domain.ImportRun{}).
		Where("status = ? AND started_at < ?", domain.RunRunning, cutoff).
		Updates(map[string]any{
			"status":      domain.RunFailed,
			"error":       "abandoned",
			"finished_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("database: abandon stale runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
