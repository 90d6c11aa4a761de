package shutdown

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"go_irimager/core"
	"go_irimager/irimager"
)

// Camera is the part of *irimager.Imager released at shutdown.
type Camera interface {
	Disconnect() error
	Close() error
}

// Daemon is the part of *irimager.Imager that stops the TCP daemon.
type Daemon interface {
	DaemonRunning() (bool, error)
	KillDaemon() error
}

// TerminateCamera returns a shutdown function that ends the camera session
// and then releases the SDK library. A session already torn down by a
// failed capture loop, or a library already closed, is not an error.
func TerminateCamera(logger *zap.Logger, cam Camera) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := cam.Disconnect()
		switch {
		case err == nil:
			logger.Info("Camera session terminated")
		case errors.Is(err, irimager.ErrClosed):
			err = nil
		default:
			logger.Warn("Camera terminate failed", zap.Error(err))
		}

		if cerr := cam.Close(); cerr != nil && !errors.Is(cerr, irimager.ErrClosed) {
			return errors.Join(err, cerr)
		}
		return err
	}
}

// KillDaemon returns a shutdown function that stops the IR imager daemon if
// it is still running. Only register it when this process launched the
// daemon.
func KillDaemon(logger *zap.Logger, d Daemon) core.ShutdownFunc {
	return func(ctx context.Context) error {
		running, err := d.DaemonRunning()
		if err != nil {
			if errors.Is(err, irimager.ErrClosed) {
				return nil
			}
			return err
		}
		if !running {
			logger.Debug("Daemon already stopped")
			return nil
		}
		if err := d.KillDaemon(); err != nil {
			return err
		}
		logger.Info("Daemon stopped")
		return nil
	}
}

// CleanupPartialSnapshots returns a shutdown function that removes snapshot
// files left half-written ("*.png.tmp") in dir. Removal errors are logged,
// never returned, so cleanup cannot block shutdown.
func CleanupPartialSnapshots(logger *zap.Logger, dir string) core.ShutdownFunc {
	return func(ctx context.Context) error {
		pattern := filepath.Join(dir, "*", "*.png.tmp")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			logger.Error("Failed to list partial snapshots", zap.String("pattern", pattern), zap.Error(err))
			return nil
		}
		top, _ := filepath.Glob(filepath.Join(dir, "*.png.tmp"))
		matches = append(matches, top...)

		var removed, failed int
		for _, match := range matches {
			if ctx.Err() != nil {
				logger.Warn("Shutdown context cancelled during cleanup",
					zap.Int("removed", removed),
					zap.Int("remaining", len(matches)-removed-failed),
				)
				return nil
			}
			if err := os.Remove(match); err != nil {
				failed++
				logger.Warn("Failed to remove partial snapshot",
					zap.String("file", filepath.Base(match)),
					zap.Error(err),
				)
				continue
			}
			removed++
		}

		if len(matches) > 0 {
			logger.Info("Partial snapshot cleanup complete",
				zap.Int("removed", removed),
				zap.Int("failed", failed),
			)
		}
		return nil
	}
}
