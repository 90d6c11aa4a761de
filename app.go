package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"go_irimager/capture"
	"go_irimager/core"
	"go_irimager/db"
	"go_irimager/irimager"
	"go_irimager/logging"
)

// app holds what every command shares: flags, the loaded configuration and
// the logger. Commands that talk to the camera call setup first.
type app struct {
	configPath string
	devMode    bool

	cfg    *core.Config
	logger *logging.Logger

	// loadImager opens the SDK at a path; tests swap in a mock-backed loader.
	loadImager func(path string, opts ...irimager.Option) (*irimager.Imager, error)
}

func newApp() *app {
	return &app{loadImager: irimager.Load}
}

// setup loads the configuration and creates the logger once.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}

	path := a.configPath
	if path == "" {
		path = core.GetEnvOrDefault("IRIMAGER_CONFIG_FILE", "")
	}
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return err
	}
	if a.devMode {
		cfg.DevMode = true
	}

	level := logging.ParseLogLevelString(cfg.LogLevel, zapcore.InfoLevel)
	logger, err := logging.NewLoggerWithLevel(level, cfg.DevMode, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg, a.logger = cfg, logger
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		a.logger.Warn("unknown log level, using info", zap.String("log_level", cfg.LogLevel))
	}
	a.logger.Debug("configuration loaded", zap.String("config", cfg.Describe()))
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		// Sync on a console writer fails on some platforms; nothing to do about it.
		_ = a.logger.Sync()
	}
}

// target names the camera endpoint for logs and session rows.
func (a *app) target() string {
	if a.cfg.Transport == core.TransportTCP {
		return net.JoinHostPort(a.cfg.TCPHost, strconv.Itoa(a.cfg.TCPPort))
	}
	return "usb"
}

// openCamera loads the SDK, connects over the configured transport and
// applies the configured palette and shutter mode. launched reports whether
// the daemon was started by this call. On error nothing is left open.
func (a *app) openCamera() (*irimager.Imager, bool, error) {
	im, err := a.loadImager(a.cfg.SDKPath, irimager.WithLogger(a.logger.Zap().Named("irimager")))
	if err != nil {
		return nil, false, err
	}

	launched, err := a.connect(im)
	if err != nil {
		if launched {
			if kerr := im.KillDaemon(); kerr != nil {
				a.logger.Warn("failed to kill daemon after connect error", zap.Error(kerr))
			}
		}
		im.Close()
		return nil, false, err
	}

	a.logger.Info("camera connected", zap.String("transport", a.cfg.Transport), zap.String("target", a.target()))
	return im, launched, nil
}

func (a *app) connect(im *irimager.Imager) (bool, error) {
	launched := false

	if a.cfg.Transport == core.TransportTCP {
		if a.cfg.LaunchDaemon {
			running, err := im.DaemonRunning()
			if err != nil {
				return false, err
			}
			if !running {
				if err := im.LaunchDaemon(); err != nil {
					return false, err
				}
				launched = true
				a.logger.Info("imager daemon launched")
			}
		}
		if err := im.ConnectTCP(a.cfg.TCPHost, a.cfg.TCPPort); err != nil {
			return launched, err
		}
	} else if err := im.ConnectUSB(a.cfg.USBConfig()); err != nil {
		return false, err
	}

	if err := a.applySettings(im); err != nil {
		if derr := im.Disconnect(); derr != nil {
			a.logger.Warn("disconnect after settings error failed", logging.NativeErrorFields(derr)...)
		}
		return launched, err
	}
	return launched, nil
}

func (a *app) applySettings(im *irimager.Imager) error {
	if p, ok, _ := a.cfg.PaletteSetting(); ok {
		if err := im.SetPalette(p); err != nil {
			return err
		}
		a.logger.Info("palette set", zap.Stringer("palette", p))
	}
	if m, ok, _ := a.cfg.ShutterSetting(); ok {
		if err := im.SetShutterMode(m); err != nil {
			return err
		}
		a.logger.Info("shutter mode set", zap.Stringer("mode", m))
	}
	return nil
}

// release disconnects and unloads a camera opened by a one-shot command,
// killing the daemon when launched is set.
func (a *app) release(im *irimager.Imager, launched bool) {
	if err := im.Disconnect(); err != nil && !errors.Is(err, irimager.ErrClosed) {
		a.logger.Warn("camera disconnect failed", logging.NativeErrorFields(err)...)
	}
	if launched {
		if err := im.KillDaemon(); err != nil {
			a.logger.Warn("failed to kill daemon", logging.NativeErrorFields(err)...)
		}
	}
	if err := im.Close(); err != nil {
		a.logger.Warn("SDK close failed", zap.Error(err))
	}
}

func (a *app) recorderOptions() capture.Options {
	opts := capture.DefaultOptions()
	opts.Interval = a.cfg.CaptureInterval()
	opts.MaxRetries = a.cfg.MaxRetries
	opts.Transport = a.cfg.Transport
	opts.Target = a.target()
	return opts
}

func (a *app) snapshotWriter() *capture.SnapshotWriter {
	return capture.NewSnapshotWriter(a.cfg.OutputDir, a.cfg.SnapshotScale, a.cfg.SaveThermal, a.cfg.SavePalette)
}

// store is the capture database with its async frame writer.
type store struct {
	db     *db.Database
	repo   *db.Repository
	writer *db.AsyncWriter
}

// openStore opens and migrates the database at path and starts the frame
// writer.
func openStore(path string, logger *logging.Logger) (*store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture store: %w", err)
	}

	// Queued frames are written through a repository without a writer.
	direct := db.NewRepository(database, nil)
	wcfg := db.DefaultAsyncWriterConfig()
	wcfg.OnError = func(op db.WriteOperation, err error) {
		logger.Warn("queued frame insert failed", zap.Error(err))
	}
	writer := db.NewAsyncWriterWithConfig(direct.CreateAsyncWriteHandler(), wcfg)
	writer.Start()

	return &store{
		db:     database,
		repo:   db.NewRepository(database, writer),
		writer: writer,
	}, nil
}

// Close drains queued frames, then closes the database.
func (s *store) Close(ctx context.Context) error {
	var errs []error
	if !s.writer.Close() {
		errs = append(errs, fmt.Errorf("frame writer did not drain: %d pending", s.writer.Pending()))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
