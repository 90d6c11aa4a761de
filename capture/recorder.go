package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go_irimager/db"
	"go_irimager/irimager"
	"go_irimager/logging"
	"go_irimager/shutdown"
)

// Errors returned by the Recorder.
var (
	ErrNoSession      = errors.New("capture: no session started")
	ErrRetryExhausted = errors.New("capture: recoverable errors exceeded retry limit")
)

// Camera is the part of *irimager.Imager the recorder reads from.
type Camera interface {
	ThermalSize() (irimager.Size, error)
	PaletteSize() (irimager.Size, error)
	ReadThermalAndPalette(thermal, palette irimager.Size) (*irimager.ThermalFrame, *irimager.PaletteFrame, error)
}

// FrameStore persists sessions and frame rows. *db.Repository satisfies it.
type FrameStore interface {
	InsertSession(ctx context.Context, s db.Session) error
	EndSession(ctx context.Context, id string, endedAt time.Time, frames int64, reason string) error
	InsertFrame(ctx context.Context, f db.Frame) error
}

// Publisher receives every captured frame. Publish must not block.
type Publisher interface {
	Publish(c *Capture)
}

// OperationWrapper runs fn as a tracked operation, typically
// (*shutdown.Manager).WrapOperation.
type OperationWrapper func(ctx context.Context, name string, fn func(context.Context) error) error

// Capture is one acquired frame pair.
type Capture struct {
	ID          string
	SessionID   string
	Seq         int64
	Thermal     *irimager.ThermalFrame
	Palette     *irimager.PaletteFrame
	Stats       irimager.Stats
	Attempts    int
	Duration    time.Duration
	ThermalPath string
	PalettePath string
}

// CapturedAt returns when the thermal frame was read.
func (c *Capture) CapturedAt() time.Time {
	return c.Thermal.CapturedAt
}

// Options tune the capture loop.
type Options struct {
	Interval time.Duration
	// MaxRetries is how many consecutive recoverable failures a single
	// frame may see before the run fails.
	MaxRetries   int
	RetryBackoff time.Duration
	// Transport and Target describe the camera connection for the store.
	Transport string
	Target    string
}

// DefaultOptions returns one frame per second with three retries.
func DefaultOptions() Options {
	return Options{
		Interval:     time.Second,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		Transport:    "usb",
	}
}

// RunStats summarizes the current session.
type RunStats struct {
	SessionID   string
	StartedAt   time.Time
	Frames      int64
	Retries     int64
	LastFrameAt time.Time
	Latest      irimager.Stats
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithStore persists sessions and frames.
func WithStore(store FrameStore) Option {
	return func(r *Recorder) { r.store = store }
}

// WithSnapshots writes PNG files for each frame.
func WithSnapshots(w *SnapshotWriter) Option {
	return func(r *Recorder) { r.snapshots = w }
}

// WithPublisher adds a frame subscriber.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publishers = append(r.publishers, p) }
}

// WithOperationWrapper tracks each frame read, so shutdown waits for it.
func WithOperationWrapper(wrap OperationWrapper) Option {
	return func(r *Recorder) { r.wrap = wrap }
}

// WithClock replaces time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder captures frames from one camera into one session at a time.
// Its methods are safe for concurrent use but frames are read one at a
// time.
type Recorder struct {
	cam        Camera
	opts       Options
	store      FrameStore
	snapshots  *SnapshotWriter
	publishers []Publisher
	wrap       OperationWrapper
	now        func() time.Time
	base       *logging.CaptureLogger

	// mu serializes frame acquisition and guards the session state.
	mu      sync.Mutex
	log     *logging.CaptureLogger
	session string
	thermal irimager.Size
	palette irimager.Size

	// stats is written with both locks held and read by Stats under
	// statsMu alone, so status readers never wait on a frame read.
	statsMu sync.RWMutex
	stats   RunStats
}

// NewRecorder creates a Recorder reading from cam.
func NewRecorder(cam Camera, logger *logging.Logger, opts Options, options ...Option) *Recorder {
	if opts.Interval <= 0 {
		opts.Interval = DefaultOptions().Interval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Transport == "" {
		opts.Transport = DefaultOptions().Transport
	}

	r := &Recorder{
		cam:  cam,
		opts: opts,
		wrap: untracked,
		now:  time.Now,
		base: logging.NewCaptureLogger(logger),
	}
	r.log = r.base
	for _, o := range options {
		o(r)
	}
	return r
}

// Start queries the frame sizes and opens a new session, ending any
// session still open. Call it again after reconfiguring the camera.
func (r *Recorder) Start(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session != "" {
		r.endLocked(ctx, "restarted")
	}

	thermal, err := r.cam.ThermalSize()
	if err != nil {
		r.log.LogNativeError("thermal size query failed", err)
		return "", err
	}
	palette, err := r.cam.PaletteSize()
	if err != nil {
		r.log.LogNativeError("palette size query failed", err)
		return "", err
	}

	id := uuid.NewString()
	started := r.now()
	if r.store != nil {
		err := r.store.InsertSession(ctx, db.Session{
			ID:          id,
			Transport:   r.opts.Transport,
			Target:      r.opts.Target,
			ThermalSize: thermal,
			PaletteSize: palette,
			StartedAt:   started,
		})
		if err != nil {
			return "", fmt.Errorf("capture: store session: %w", err)
		}
	}

	r.session = id
	r.thermal, r.palette = thermal, palette
	r.updateStats(func(st *RunStats) {
		*st = RunStats{SessionID: id, StartedAt: started}
	})
	r.log = r.base.WithSession(id, r.opts.Transport)
	r.log.Info("capture session started",
		zap.Stringer("thermal", thermal),
		zap.Stringer("palette", palette),
	)
	return id, nil
}

// SessionID returns the open session, or "" if none.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Stats returns the counters of the open or last session.
func (r *Recorder) Stats() RunStats {
	r.statsMu.RLock()
	defer r.statsMu.RUnlock()
	return r.stats
}

// updateStats applies fn to the counters. Caller holds r.mu.
func (r *Recorder) updateStats(fn func(st *RunStats)) {
	r.statsMu.Lock()
	fn(&r.stats)
	r.statsMu.Unlock()
}

// Capture acquires one frame pair in the open session. Recoverable native
// errors are retried after RetryBackoff up to MaxRetries times; the last
// error is then returned wrapped with ErrRetryExhausted. Fatal and other
// errors are returned at once.
func (r *Recorder) Capture(ctx context.Context) (*Capture, error) {
	var c *Capture
	err := r.wrap(ctx, "capture_frame", func(ctx context.Context) error {
		var err error
		c, err = r.capture(ctx)
		return err
	})
	return c, err
}

func (r *Recorder) capture(ctx context.Context) (*Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == "" {
		return nil, ErrNoSession
	}

	seq := r.stats.Frames + 1
	timer := r.log.StartFrame(seq)

	var (
		thermal *irimager.ThermalFrame
		palette *irimager.PaletteFrame
		err     error
	)
	for {
		timer.Attempts++
		thermal, palette, err = r.cam.ReadThermalAndPalette(r.thermal, r.palette)
		if err == nil {
			break
		}
		if !irimager.IsRecoverable(err) {
			r.log.LogNativeError("frame read failed", err)
			return nil, err
		}
		if timer.Attempts > r.opts.MaxRetries {
			r.log.LogNativeError("frame read failed, retries exhausted", err)
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, timer.Attempts, err)
		}

		r.updateStats(func(st *RunStats) { st.Retries++ })
		r.log.LogRetry(timer, err, r.opts.RetryBackoff)
		if err := sleep(ctx, r.opts.RetryBackoff); err != nil {
			return nil, err
		}
	}

	c := &Capture{
		ID:        uuid.NewString(),
		SessionID: r.session,
		Seq:       seq,
		Thermal:   thermal,
		Palette:   palette,
		Attempts:  timer.Attempts,
	}

	if r.snapshots.Enabled() {
		c.ThermalPath, c.PalettePath, err = r.snapshots.Write(r.session, seq, thermal, palette)
		if err != nil {
			// A full disk should not stop acquisition; the row is still stored.
			r.log.Warn("snapshot write failed", zap.Int64("seq", seq), zap.Error(err))
		}
	}

	m := r.log.EndFrame(timer, thermal, palette)
	c.Stats = m.Stats
	c.Duration = m.Duration

	r.updateStats(func(st *RunStats) {
		st.Frames = seq
		st.LastFrameAt = thermal.CapturedAt
		st.Latest = c.Stats
	})

	if r.store != nil {
		err := r.store.InsertFrame(ctx, db.Frame{
			ID:          c.ID,
			SessionID:   c.SessionID,
			Seq:         c.Seq,
			CapturedAt:  thermal.CapturedAt,
			Stats:       c.Stats,
			Attempts:    c.Attempts,
			Duration:    c.Duration,
			ThermalPath: c.ThermalPath,
			PalettePath: c.PalettePath,
		})
		if err != nil {
			r.log.Warn("frame not stored", zap.Int64("seq", seq), zap.Error(err))
		}
	}

	for _, p := range r.publishers {
		p.Publish(c)
	}
	return c, nil
}

// Run opens a session if none is open and captures a frame every
// Interval until ctx is done, which ends the session and returns nil. A
// capture error ends the session and is returned.
func (r *Recorder) Run(ctx context.Context) error {
	if r.SessionID() == "" {
		if _, err := r.Start(ctx); err != nil {
			return err
		}
	}
	r.log.Info("capture loop started", zap.Duration("interval", r.opts.Interval))

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Capture(ctx); err != nil {
			if stopping(ctx, err) {
				r.End(context.WithoutCancel(ctx), "stopped")
				return nil
			}
			r.End(context.WithoutCancel(ctx), "error: "+err.Error())
			return err
		}

		select {
		case <-ctx.Done():
			r.End(context.WithoutCancel(ctx), "stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Burst opens a session if needed and captures n frames back to back.
// progress, if set, is called after each frame with the number done.
func (r *Recorder) Burst(ctx context.Context, n int, progress func(done, total int)) ([]*Capture, error) {
	if n <= 0 {
		return nil, fmt.Errorf("capture: burst size must be positive, got %d", n)
	}
	if r.SessionID() == "" {
		if _, err := r.Start(ctx); err != nil {
			return nil, err
		}
	}

	captures := make([]*Capture, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return captures, err
		}
		c, err := r.Capture(ctx)
		if err != nil {
			return captures, err
		}
		captures = append(captures, c)
		if progress != nil {
			progress(i+1, n)
		}
	}
	return captures, nil
}

// End closes the open session with reason. It is a no-op without one.
func (r *Recorder) End(ctx context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked(ctx, reason)
}

func (r *Recorder) endLocked(ctx context.Context, reason string) {
	if r.session == "" {
		return
	}
	if r.store != nil {
		if err := r.store.EndSession(ctx, r.session, r.now(), r.stats.Frames, reason); err != nil {
			r.log.Warn("session end not stored", zap.Error(err))
		}
	}
	r.log.Info("capture session ended",
		zap.String("reason", reason),
		zap.Int64("frames", r.stats.Frames),
		zap.Int64("retries", r.stats.Retries),
	)
	r.session = ""
	r.log = r.base
}

func untracked(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

// stopping reports whether err only reflects shutdown.
func stopping(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, shutdown.ErrTrackerClosed)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
