package core

import (
	"context"
)

// ShutdownFunc is the function signature for cleanup handlers during graceful shutdown.
// Each shutdown function receives a context that may carry a deadline and
// returns an error if cleanup fails.
//
// Implementations should respect the context deadline and be safe to call
// more than once; camera teardown in particular may run after the session
// has already been closed by a failing capture loop.
//
// Example usage:
//
//	var terminate ShutdownFunc = func(ctx context.Context) error {
//	    return cam.Disconnect()
//	}
type ShutdownFunc func(ctx context.Context) error
