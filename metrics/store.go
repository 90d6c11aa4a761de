package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go_irimager/irimager"
)

// OperationFunc runs fn as a named operation. It matches
// capture.OperationWrapper and shutdown.Manager.WrapOperation.
type OperationFunc = func(ctx context.Context, name string, fn func(context.Context) error) error

// StoreConfig configures a Store.
type StoreConfig struct {
	// HistoryCapacity is how many recent records are kept.
	HistoryCapacity int
}

// DefaultStoreConfig returns the default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{HistoryCapacity: 200}
}

type nameStats struct {
	count         int64
	success       int64
	cancelled     int64
	totalDuration time.Duration
	maxDuration   time.Duration
}

// Store records camera operations. It is safe for concurrent use.
//
//	store := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
//	wrap := store.Wrap(mgr.WrapOperation)
type Store struct {
	history *Ring[OperationRecord]
	now     func() time.Time
	start   time.Time

	mu        sync.RWMutex
	total     int64
	success   int64
	errors    int64
	cancelled int64
	byName    map[string]*nameStats
	lastError *OperationRecord
}

// NewStore creates a Store. startTime is used for Uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	if config.HistoryCapacity < 1 {
		config.HistoryCapacity = DefaultStoreConfig().HistoryCapacity
	}
	return &Store{
		history: NewRing[OperationRecord](config.HistoryCapacity),
		now:     time.Now,
		start:   startTime,
		byName:  make(map[string]*nameStats),
	}
}

// Record adds a completed operation.
func (s *Store) Record(rec OperationRecord) {
	s.history.Push(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.byName[rec.Name]
	if !ok {
		st = &nameStats{}
		s.byName[rec.Name] = st
	}
	s.total++
	st.count++
	st.totalDuration += rec.Duration
	st.maxDuration = max(st.maxDuration, rec.Duration)

	switch rec.Status {
	case StatusSuccess:
		s.success++
		st.success++
	case StatusCancelled:
		s.cancelled++
		st.cancelled++
	default:
		s.errors++
		r := rec
		s.lastError = &r
	}
}

// Wrap returns an OperationFunc that runs next (or fn directly when next
// is nil) and records the outcome.
func (s *Store) Wrap(next OperationFunc) OperationFunc {
	return func(ctx context.Context, name string, fn func(context.Context) error) error {
		start := s.now()
		var err error
		if next != nil {
			err = next(ctx, name, fn)
		} else {
			err = fn(ctx)
		}
		s.Record(newRecord(name, start, s.now().Sub(start), err))
		return err
	}
}

func newRecord(name string, start time.Time, d time.Duration, err error) OperationRecord {
	rec := OperationRecord{
		Name:      name,
		Status:    StatusSuccess,
		StartTime: start,
		Duration:  d,
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rec.Status = StatusCancelled
	default:
		rec.Status = StatusError
		rec.Error = err.Error()
		if code, ok := irimager.CodeOf(err); ok {
			c := int32(code)
			rec.Code = &c
		}
	}
	return rec
}

// Summary aggregates everything recorded so far.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		Total:     s.total,
		Success:   s.success,
		Errors:    s.errors,
		Cancelled: s.cancelled,
		ByName:    make(map[string]*OperationSummary, len(s.byName)),
		Uptime:    s.now().Sub(s.start),
	}
	if s.lastError != nil {
		r := *s.lastError
		sum.LastError = &r
	}

	for name, st := range s.byName {
		op := &OperationSummary{
			Count:       st.count,
			AvgDuration: st.totalDuration / time.Duration(st.count),
			MaxDuration: st.maxDuration,
		}
		if attempted := st.count - st.cancelled; attempted > 0 {
			op.SuccessRate = float64(st.success) / float64(attempted) * 100
		}
		sum.ByName[name] = op
	}
	return sum
}

// Recent returns up to limit of the most recent records, oldest first.
func (s *Store) Recent(limit int) []OperationRecord {
	return s.history.Last(limit)
}
