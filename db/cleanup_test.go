package db

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestCleanupBefore(t *testing.T) {
	store := openTestDatabase(t)
	repo := NewRepository(store, nil)
	ctx := t.Context()

	old := time.Now().AddDate(0, 0, -40)
	recent := time.Now().Add(-time.Hour)

	oldSession := newTestSession("old", old)
	liveSession := newTestSession("live", recent)
	for _, s := range []Session{oldSession, liveSession} {
		if err := repo.InsertSession(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.EndSession(ctx, "old", old.Add(time.Minute), 2, "stopped"); err != nil {
		t.Fatal(err)
	}

	frames := []Frame{
		newTestFrame("old", 1, old),
		newTestFrame("old", 2, old.Add(time.Second)),
		newTestFrame("live", 1, recent),
	}
	for _, f := range frames {
		if err := repo.InsertFrame(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	result, err := store.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if result.FramesDeleted != 2 || result.SessionsDeleted != 1 || result.TotalDeleted() != 3 {
		t.Errorf("unexpected result %+v", result)
	}
	if !slices.Contains(result.SnapshotPaths, frames[0].ThermalPath) || len(result.SnapshotPaths) != 2 {
		t.Errorf("SnapshotPaths = %v", result.SnapshotPaths)
	}

	if _, err := repo.GetSession(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old session should be gone, got %v", err)
	}
	if count, _ := repo.CountFrames(ctx, "live"); count != 1 {
		t.Errorf("recent frame count = %d, want 1", count)
	}
}

func TestCleanup_KeepsOpenSessions(t *testing.T) {
	store := openTestDatabase(t)
	repo := NewRepository(store, nil)
	ctx := t.Context()

	// A long-running session that started before the cutoff is still open.
	if err := repo.InsertSession(ctx, newTestSession("running", time.Now().AddDate(0, 0, -60))); err != nil {
		t.Fatal(err)
	}

	result, err := store.Cleanup(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if result.SessionsDeleted != 0 {
		t.Errorf("open session was deleted: %+v", result)
	}
}

func TestCleanup_RetentionArguments(t *testing.T) {
	store := openTestDatabase(t)

	if _, err := store.Cleanup(t.Context(), -1); err == nil {
		t.Error("negative retention should fail")
	}

	result, err := store.Cleanup(t.Context(), 0)
	if err != nil || result.TotalDeleted() != 0 {
		t.Errorf("zero retention should keep everything: %+v, %v", result, err)
	}
}

func TestCleanup_ClosedDatabase(t *testing.T) {
	store := openTestDatabase(t)
	store.Close()

	if _, err := store.CleanupBefore(t.Context(), time.Now()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestStartCleanupScheduler(t *testing.T) {
	store := openTestDatabase(t)

	results := make(chan CleanupResult, 1)
	store.StartCleanupScheduler(t.Context(), 30, time.Hour, func(r CleanupResult, err error) {
		if err != nil {
			t.Errorf("scheduled cleanup: %v", err)
		}
		select {
		case results <- r:
		default:
		}
	})

	select {
	case <-results:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run an initial cleanup")
	}
}
