package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult describes one retention pass.
type CleanupResult struct {
	FramesDeleted   int64
	SessionsDeleted int64
	// SnapshotPaths lists the PNG files referenced by the deleted frames.
	// The store does not touch the filesystem; callers remove them.
	SnapshotPaths []string
	Duration      time.Duration
}

// TotalDeleted is the number of rows removed.
func (r CleanupResult) TotalDeleted() int64 {
	return r.FramesDeleted + r.SessionsDeleted
}

// Cleanup removes data older than retentionDays. Zero keeps everything.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	if retentionDays < 0 {
		return CleanupResult{}, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if retentionDays == 0 {
		return CleanupResult{}, nil
	}
	return d.CleanupBefore(ctx, time.Now().AddDate(0, 0, -retentionDays))
}

// CleanupBefore deletes frames captured before cutoff and ended sessions
// that started before cutoff and have no frames left, in one transaction,
// then runs VACUUM. A VACUUM failure is returned alongside a valid result.
func (d *Database) CleanupBefore(ctx context.Context, cutoff time.Time) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return result, ErrClosed
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bound := formatTime(cutoff)

	rows, err := tx.QueryContext(ctx,
		`SELECT thermal_path, palette_path FROM frames WHERE captured_at < ?`, bound)
	if err != nil {
		return result, fmt.Errorf("failed to list expired frames: %w", err)
	}
	for rows.Next() {
		var thermal, palette string
		if err := rows.Scan(&thermal, &palette); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan expired frame: %w", err)
		}
		for _, p := range []string{thermal, palette} {
			if p != "" {
				result.SnapshotPaths = append(result.SnapshotPaths, p)
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("error iterating expired frames: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM frames WHERE captured_at < ?`, bound)
	if err != nil {
		return result, fmt.Errorf("failed to delete frames: %w", err)
	}
	if result.FramesDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for frames: %w", err)
	}

	res, err = tx.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE started_at < ? AND ended_at IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM frames WHERE frames.session_id = sessions.id)`, bound)
	if err != nil {
		return result, fmt.Errorf("failed to delete sessions: %w", err)
	}
	if result.SessionsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if result.TotalDeleted() > 0 {
		if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// StartCleanupScheduler runs Cleanup immediately and then every interval
// until ctx is done. onCleanup, if set, receives each result.
func (d *Database) StartCleanupScheduler(ctx context.Context, retentionDays int, interval time.Duration, onCleanup func(CleanupResult, error)) {
	run := func() {
		result, err := d.Cleanup(ctx, retentionDays)
		if onCleanup != nil && ctx.Err() == nil {
			onCleanup(result, err)
		}
	}

	go func() {
		run()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
