// Package metrics keeps in-memory counters and a bounded history of camera
// operations (frame reads, settings changes) for the live view and the
// end-of-run summary.
package metrics

import "time"

// Status values for OperationRecord.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// OperationRecord is one completed camera operation.
type OperationRecord struct {
	// Name identifies the operation, e.g. "capture_frame".
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	// Code is the native status code when the failure came from the SDK.
	Code *int32 `json:"code,omitempty"`
}

// OperationSummary aggregates all records sharing a name.
type OperationSummary struct {
	Count int64 `json:"count"`
	// SuccessRate is a percentage (0-100) of non-cancelled runs.
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration"`
}

// Summary is a point-in-time view of a Store.
type Summary struct {
	Total     int64                        `json:"total"`
	Success   int64                        `json:"success"`
	Errors    int64                        `json:"errors"`
	Cancelled int64                        `json:"cancelled"`
	ByName    map[string]*OperationSummary `json:"by_name"`
	Uptime    time.Duration                `json:"uptime"`
	LastError *OperationRecord             `json:"last_error,omitempty"`
}
