package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go_irimager/irimager"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// timeLayout is how timestamps are stored in the TEXT *_at columns, so they
// compare as text in the same order as in time.
const timeLayout = "2006-01-02 15:04:05.000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. RFC 3339 is accepted too, which is
// how the sqlite driver renders a column declared DATETIME.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Session is one row of the sessions table: a connected camera run.
type Session struct {
	ID          string
	Transport   string
	Target      string
	ThermalSize irimager.Size
	PaletteSize irimager.Size
	StartedAt   time.Time
	// EndedAt is zero while the session is open.
	EndedAt    time.Time
	FrameCount int64
	EndReason  string
}

// Open reports whether the session has not been ended.
func (s Session) Open() bool {
	return s.EndedAt.IsZero()
}

// Frame is one row of the frames table.
type Frame struct {
	ID          string
	SessionID   string
	Seq         int64
	CapturedAt  time.Time
	Stats       irimager.Stats
	Attempts    int
	Duration    time.Duration
	ThermalPath string
	PalettePath string
}

// Repository reads and writes sessions and frames. Frame inserts go
// through the AsyncWriter when one is started.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter may be nil for fully
// synchronous writes; otherwise start it with the handler from
// CreateAsyncWriteHandler.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

// InsertSession stores a newly opened session.
func (r *Repository) InsertSession(ctx context.Context, s Session) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO sessions (
			id, transport, target,
			thermal_width, thermal_height, palette_width, palette_height,
			started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Transport, s.Target,
		s.ThermalSize.Width, s.ThermalSize.Height, s.PaletteSize.Width, s.PaletteSize.Height,
		formatTime(s.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	return nil
}

// EndSession closes a session, recording its frame count and why it ended.
func (r *Repository) EndSession(ctx context.Context, id string, endedAt time.Time, frames int64, reason string) error {
	res, err := r.db.exec(ctx, `
		UPDATE sessions SET ended_at = ?, frame_count = ?, end_reason = ?
		WHERE id = ?`,
		formatTime(endedAt), frames, reason, id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectSession = `
	SELECT id, transport, target,
	       thermal_width, thermal_height, palette_width, palette_height,
	       started_at, COALESCE(ended_at, ''), frame_count, end_reason
	FROM sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var started, ended string
	err := row.Scan(
		&s.ID, &s.Transport, &s.Target,
		&s.ThermalSize.Width, &s.ThermalSize.Height, &s.PaletteSize.Width, &s.PaletteSize.Height,
		&started, &ended, &s.FrameCount, &s.EndReason,
	)
	if err != nil {
		return s, err
	}
	if s.StartedAt, err = parseTime(started); err != nil {
		return s, fmt.Errorf("session %s started_at: %w", s.ID, err)
	}
	if ended != "" {
		if s.EndedAt, err = parseTime(ended); err != nil {
			return s, fmt.Errorf("session %s ended_at: %w", s.ID, err)
		}
	}
	return s, nil
}

// GetSession returns the session with id, or ErrNotFound.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	rows, err := r.db.query(ctx, selectSession+` WHERE id = ?`, id)
	if err != nil {
		return Session{}, fmt.Errorf("failed to query session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Session{}, fmt.Errorf("failed to query session: %w", err)
		}
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	s, err := scanSession(rows)
	if err != nil {
		return Session{}, fmt.Errorf("failed to scan session row: %w", err)
	}
	return s, nil
}

// ListSessions returns the most recently started sessions, newest first.
// A non-positive limit means 10.
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.query(ctx, selectSession+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

const insertFrame = `
	INSERT INTO frames (
		id, session_id, seq, captured_at,
		min_c, max_c, mean_c, hot_x, hot_y,
		attempts, duration_ms, thermal_path, palette_path
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func frameArgs(f Frame) []any {
	return []any{
		f.ID, f.SessionID, f.Seq, formatTime(f.CapturedAt),
		f.Stats.MinC, f.Stats.MaxC, f.Stats.MeanC, f.Stats.HotX, f.Stats.HotY,
		f.Attempts, f.Duration.Milliseconds(), f.ThermalPath, f.PalettePath,
	}
}

// InsertFrame stores a frame row. With a started AsyncWriter the row is
// queued and the call returns immediately; if the queue is full the row is
// written synchronously instead.
func (r *Repository) InsertFrame(ctx context.Context, f Frame) error {
	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(f) {
			return nil
		}
	}
	return r.insertFrame(ctx, f)
}

func (r *Repository) insertFrame(ctx context.Context, f Frame) error {
	if _, err := r.db.exec(ctx, insertFrame, frameArgs(f)...); err != nil {
		return fmt.Errorf("failed to insert frame %s/%d: %w", f.SessionID, f.Seq, err)
	}
	return nil
}

// CreateAsyncWriteHandler returns the WriteHandler that performs queued
// frame inserts.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		f, ok := op.Data.(Frame)
		if !ok {
			return fmt.Errorf("invalid operation type %T: expected Frame", op.Data)
		}
		return r.insertFrame(context.Background(), f)
	}
}

// RecentFrames returns the latest frames, newest first. An empty sessionID
// covers all sessions; a non-positive limit means 10.
func (r *Repository) RecentFrames(ctx context.Context, sessionID string, limit int) ([]Frame, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, session_id, seq, captured_at,
		       min_c, max_c, mean_c, hot_x, hot_y,
		       attempts, duration_ms, thermal_path, palette_path
		FROM frames`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY captured_at DESC, seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var captured string
		var durationMS int64
		err := rows.Scan(
			&f.ID, &f.SessionID, &f.Seq, &captured,
			&f.Stats.MinC, &f.Stats.MaxC, &f.Stats.MeanC, &f.Stats.HotX, &f.Stats.HotY,
			&f.Attempts, &durationMS, &f.ThermalPath, &f.PalettePath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame row: %w", err)
		}
		if f.CapturedAt, err = parseTime(captured); err != nil {
			return nil, fmt.Errorf("frame %s captured_at: %w", f.ID, err)
		}
		f.Duration = time.Duration(durationMS) * time.Millisecond
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frame rows: %w", err)
	}
	return frames, nil
}

// CountFrames returns the number of stored frames, for one session or all
// when sessionID is empty.
func (r *Repository) CountFrames(ctx context.Context, sessionID string) (int64, error) {
	query := `SELECT COUNT(*) FROM frames`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	var count int64
	if err := r.db.queryRow(ctx, query, args, &count); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return count, nil
}

// TemperatureRange returns the coldest and hottest readings of a session.
// ok is false when the session has no frames.
func (r *Repository) TemperatureRange(ctx context.Context, sessionID string) (minC, maxC float64, ok bool, err error) {
	var lo, hi sql.NullFloat64
	err = r.db.queryRow(ctx,
		`SELECT MIN(min_c), MAX(max_c) FROM frames WHERE session_id = ?`,
		[]any{sessionID}, &lo, &hi,
	)
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to query temperature range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return lo.Float64, hi.Float64, true, nil
}
