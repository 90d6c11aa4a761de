package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"go_irimager/irimager"
)

func newTestStore(capacity int) (*Store, *time.Time) {
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s := NewStore(StoreConfig{HistoryCapacity: capacity}, clock)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestNewStore_DefaultCapacity(t *testing.T) {
	s := NewStore(StoreConfig{}, time.Now())
	if got := s.history.Cap(); got != DefaultStoreConfig().HistoryCapacity {
		t.Errorf("capacity = %d, want %d", got, DefaultStoreConfig().HistoryCapacity)
	}
}

func TestStore_Record(t *testing.T) {
	s, _ := newTestStore(10)

	s.Record(OperationRecord{Name: "capture_frame", Status: StatusSuccess, Duration: 10 * time.Millisecond})
	s.Record(OperationRecord{Name: "capture_frame", Status: StatusSuccess, Duration: 30 * time.Millisecond})
	s.Record(OperationRecord{Name: "capture_frame", Status: StatusError, Duration: 20 * time.Millisecond, Error: "boom"})
	s.Record(OperationRecord{Name: "capture_frame", Status: StatusCancelled})
	s.Record(OperationRecord{Name: "set_palette", Status: StatusSuccess, Duration: time.Millisecond})

	sum := s.Summary()
	if sum.Total != 5 || sum.Success != 3 || sum.Errors != 1 || sum.Cancelled != 1 {
		t.Errorf("totals = %+v", sum)
	}
	if sum.LastError == nil || sum.LastError.Error != "boom" {
		t.Errorf("LastError = %+v", sum.LastError)
	}

	frame := sum.ByName["capture_frame"]
	if frame == nil {
		t.Fatal("missing capture_frame summary")
	}
	if frame.Count != 4 {
		t.Errorf("Count = %d, want 4", frame.Count)
	}
	// Cancelled runs do not count against the success rate.
	if math.Abs(frame.SuccessRate-66.67) > 0.01 {
		t.Errorf("SuccessRate = %v, want ~66.67", frame.SuccessRate)
	}
	if frame.AvgDuration != 15*time.Millisecond || frame.MaxDuration != 30*time.Millisecond {
		t.Errorf("durations avg=%v max=%v", frame.AvgDuration, frame.MaxDuration)
	}
	if sum.ByName["set_palette"].SuccessRate != 100 {
		t.Errorf("set_palette rate = %v", sum.ByName["set_palette"].SuccessRate)
	}
}

func TestStore_RecentIsBounded(t *testing.T) {
	s, _ := newTestStore(3)
	for i := range 5 {
		s.Record(OperationRecord{Name: fmt.Sprintf("op%d", i), Status: StatusSuccess})
	}

	recent := s.Recent(10)
	if len(recent) != 3 {
		t.Fatalf("got %d records, want 3", len(recent))
	}
	if recent[0].Name != "op2" || recent[2].Name != "op4" {
		t.Errorf("recent = %v", recent)
	}
	if s.Summary().Total != 5 {
		t.Error("totals should include records evicted from history")
	}
}

func TestStore_Wrap(t *testing.T) {
	nativeErr := fmt.Errorf("read: %w", &irimager.Error{Op: "get_thermal_image", Code: -1, Kind: irimager.ErrAcquisition})

	tests := []struct {
		name       string
		err        error
		wantStatus string
		wantCode   *int32
	}{
		{"success", nil, StatusSuccess, nil},
		{"plain error", errors.New("disk full"), StatusError, nil},
		{"native error", nativeErr, StatusError, ptr(int32(-1))},
		{"cancelled", context.Canceled, StatusCancelled, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clock := newTestStore(10)
			wrap := s.Wrap(nil)

			err := wrap(context.Background(), "capture_frame", func(context.Context) error {
				*clock = clock.Add(25 * time.Millisecond)
				return tt.err
			})
			if !errors.Is(err, tt.err) {
				t.Errorf("Wrap returned %v, want %v", err, tt.err)
			}

			rec := s.Recent(1)[0]
			if rec.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", rec.Status, tt.wantStatus)
			}
			if rec.Duration != 25*time.Millisecond {
				t.Errorf("Duration = %v", rec.Duration)
			}
			switch {
			case tt.wantCode == nil && rec.Code != nil:
				t.Errorf("Code = %d, want none", *rec.Code)
			case tt.wantCode != nil && (rec.Code == nil || *rec.Code != *tt.wantCode):
				t.Errorf("Code = %v, want %d", rec.Code, *tt.wantCode)
			}
		})
	}
}

func TestStore_WrapCallsNext(t *testing.T) {
	s, _ := newTestStore(10)
	var names []string
	next := func(ctx context.Context, name string, fn func(context.Context) error) error {
		names = append(names, name)
		return fn(ctx)
	}

	called := false
	err := s.Wrap(next)(context.Background(), "trigger_shutter", func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}
	if len(names) != 1 || names[0] != "trigger_shutter" {
		t.Errorf("next saw %v", names)
	}
}

func TestStore_Uptime(t *testing.T) {
	s, clock := newTestStore(1)
	*clock = clock.Add(time.Hour)
	if got := s.Summary().Uptime; got != time.Hour {
		t.Errorf("Uptime = %v, want 1h", got)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore(StoreConfig{HistoryCapacity: 50}, time.Now())

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.Record(OperationRecord{Name: fmt.Sprintf("op%d", i%2), Status: StatusSuccess})
				s.Summary()
				s.Recent(5)
			}
		}()
	}
	wg.Wait()

	if got := s.Summary().Total; got != 1000 {
		t.Errorf("Total = %d, want 1000", got)
	}
}

func ptr[T any](v T) *T { return &v }
