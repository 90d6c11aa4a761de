package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_irimager/capture"
	"go_irimager/core"
	"go_irimager/db"
	"go_irimager/liveview"
	"go_irimager/logging"
	"go_irimager/metrics"
	"go_irimager/shutdown"
)

// retentionInterval is how often expired frames are pruned during a run.
const retentionInterval = time.Hour

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Capture frames continuously until interrupted",
		Long: "Connects to the camera and captures a thermal and palette frame every\n" +
			"IRIMAGER_CAPTURE_INTERVAL_MS, writing PNG snapshots, storing frame rows\n" +
			"and serving the live view when configured.",
		Args: cobra.NoArgs,
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			if !service.Interactive() {
				return runService(a)
			}
			return runCapture(cmd.Context(), a)
		}),
	}
}

// runCapture wires the camera, store, live view and recorder together and
// captures until ctx is done or capture fails. Cleanup runs through the
// shutdown manager in priority order.
func runCapture(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	zl := logger.Zap()

	logger.Info("starting capture",
		zap.String("version", core.GetVersionInfo()),
		zap.String("config", cfg.Describe()),
	)

	mgr := shutdown.NewManager(zl, shutdown.WithParent(ctx))
	mgr.Start()
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Error("shutdown completed with errors", zap.Error(err))
		}
	}()

	mgr.Register("logger", shutdown.PriorityLogger, func(context.Context) error {
		_ = logger.Sync()
		return nil
	})
	mgr.Register("partial snapshots", shutdown.PriorityTempFiles, shutdown.CleanupPartialSnapshots(zl, cfg.OutputDir))

	cam, launched, err := a.openCamera()
	if err != nil {
		return err
	}
	mgr.Register("camera", shutdown.PriorityCamera, shutdown.TerminateCamera(zl, cam))
	if launched {
		mgr.Register("daemon", shutdown.PriorityDaemon, shutdown.KillDaemon(zl, cam))
	}

	ops := metrics.NewStore(metrics.DefaultStoreConfig(), time.Now())
	defer logOperations(logger, ops)

	options := []capture.Option{
		capture.WithOperationWrapper(ops.Wrap(mgr.WrapOperation)),
		capture.WithSnapshots(a.snapshotWriter()),
	}

	if cfg.DatabasePath != "" {
		st, err := openStore(cfg.DatabasePath, logger)
		if err != nil {
			return err
		}
		mgr.Register("store", shutdown.PriorityStore, st.Close)
		options = append(options, capture.WithStore(st.repo))

		if cfg.RetentionDays > 0 {
			st.db.StartCleanupScheduler(mgr.Context(), cfg.RetentionDays, retentionInterval, func(res db.CleanupResult, err error) {
				pruneSnapshots(a, res, err)
			})
		}
	}

	var rec *capture.Recorder
	var live *liveview.Server
	if cfg.LiveViewAddr != "" {
		lcfg := liveview.DefaultServerConfig()
		lcfg.Addr = cfg.LiveViewAddr
		lcfg.PasswordHash = cfg.LiveViewPasswordHash
		source := liveview.StatusSourceFunc(func() capture.RunStats { return rec.Stats() })

		live, err = liveview.NewServer(lcfg, source, zl)
		if err != nil {
			return err
		}
		live.SetMetrics(ops)
		live.SetLifecycle(mgr)
		options = append(options, capture.WithPublisher(live.Broadcaster()))
		mgr.Register("live view", shutdown.PriorityLiveView, live.Shutdown)
	}

	rec = capture.NewRecorder(cam, logger, a.recorderOptions(), options...)
	mgr.Register("recorder", shutdown.PriorityRecorder, func(ctx context.Context) error {
		rec.End(ctx, "shutdown")
		return nil
	})

	logger.Debug("shutdown handlers registered", zap.Strings("handlers", mgr.RegisteredHandlers()))

	if live != nil {
		go func() {
			if err := live.Start(mgr.Context()); err != nil {
				logger.Error("live view stopped", zap.Error(err))
			}
		}()
	}

	if err := rec.Run(mgr.Context()); err != nil {
		logger.Error("capture stopped", zap.Error(err))
		if live != nil {
			live.Broadcaster().BroadcastError("capture", err.Error())
		}
		// Stop the live view and retention scheduler before cleanup runs.
		mgr.Trigger()
		return err
	}
	logger.Info("capture stopped")
	return nil
}

// logOperations writes the per-operation totals of a run.
func logOperations(logger *logging.Logger, ops *metrics.Store) {
	sum := ops.Summary()
	for name, op := range sum.ByName {
		logger.Info("operation summary",
			zap.String("operation", name),
			zap.Int64("count", op.Count),
			zap.Float64("success_rate", op.SuccessRate),
			zap.Duration("avg", op.AvgDuration),
			zap.Duration("max", op.MaxDuration),
		)
	}
	if sum.LastError != nil {
		logger.Warn("last operation error",
			zap.String("operation", sum.LastError.Name),
			zap.String("error", sum.LastError.Error),
			zap.Time("at", sum.LastError.StartTime),
		)
	}
}

// pruneSnapshots removes the PNG files of frames the retention cleanup
// deleted.
func pruneSnapshots(a *app, res db.CleanupResult, err error) {
	if err != nil {
		a.logger.Warn("retention cleanup failed", zap.Error(err))
		return
	}

	removed := 0
	for _, path := range res.SnapshotPaths {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			a.logger.Warn("failed to remove expired snapshot", zap.String("path", path), zap.Error(rerr))
			continue
		}
		removed++
	}
	if res.TotalDeleted() > 0 {
		a.logger.Info("retention cleanup",
			zap.Int64("frames", res.FramesDeleted),
			zap.Int64("sessions", res.SessionsDeleted),
			zap.Int("snapshots", removed),
			zap.Duration("duration", res.Duration),
		)
	}
}

func describeTemps(c *capture.Capture) string {
	return fmt.Sprintf("min %.1f°C  max %.1f°C  mean %.1f°C  hot (%d,%d)",
		c.Stats.MinC, c.Stats.MaxC, c.Stats.MeanC, c.Stats.HotX, c.Stats.HotY)
}
