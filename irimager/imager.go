package irimager

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Option configures an Imager.
type Option func(*Imager)

// WithLogger sets the logger used for session lifecycle events.
// Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(im *Imager) {
		if logger != nil {
			im.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp frames.
func WithClock(now func() time.Time) Option {
	return func(im *Imager) {
		if now != nil {
			im.now = now
		}
	}
}

// Imager is one loaded copy of the SDK. All native calls go through its
// mutex because the SDK keeps a single implicit session.
type Imager struct {
	mu      sync.Mutex
	native  Native
	logger  *zap.Logger
	now     func() time.Time
	release func() error
	path    string
	closed  bool
}

// New wraps an already-bound Native. Use it with MockNative in tests or with
// a custom loader; Load is the normal entry point.
func New(native Native, opts ...Option) *Imager {
	im := &Imager{
		native: native,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Path returns the library path given to Load, or "" for New.
func (im *Imager) Path() string {
	return im.path
}

// call runs fn with the native table while holding the session lock.
func (im *Imager) call(op string, fn func(n Native) error) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.closed {
		return fmt.Errorf("%w: %s", ErrClosed, op)
	}
	return fn(im.native)
}

// ConnectUSB opens a session to a USB-attached camera.
func (im *Imager) ConnectUSB(cfg USBConfig) error {
	err := im.call(opUSBInit, func(n Native) error {
		return check(opUSBInit, ErrConnection, n.USBInit(cfg.XMLConfig, cfg.FormatsDef, cfg.LogFile))
	})
	if err != nil {
		return err
	}
	im.logger.Info("camera connected",
		zap.String("transport", "usb"),
		zap.String("xml_config", cfg.XMLConfig),
	)
	return nil
}

// ConnectTCP opens a session through the imager daemon at host:port.
// An empty host means localhost and port 0 means DefaultTCPPort.
//
// A -1 status (host not found) matches ErrHostNotFound and ErrRecoverable;
// -2 matches ErrFatal.
func (im *Imager) ConnectTCP(host string, port int) error {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = DefaultTCPPort
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConnection, port)
	}

	err := im.call(opTCPInit, func(n Native) error {
		code := n.TCPInit(host, int32(port))
		switch Code(code) {
		case CodeOK:
			return nil
		case CodeError:
			return newError(opTCPInit, ErrConnection, code, describe(opTCPInit, CodeError), ErrHostNotFound)
		default:
			return check(opTCPInit, ErrConnection, code)
		}
	})
	if err != nil {
		return err
	}
	im.logger.Info("camera connected",
		zap.String("transport", "tcp"),
		zap.String("host", host),
		zap.Int("port", port),
	)
	return nil
}

// Disconnect terminates the native session. The library stays loaded, so a
// new Connect call may follow.
func (im *Imager) Disconnect() error {
	err := im.call(opTerminate, func(n Native) error {
		return check(opTerminate, ErrTeardown, n.Terminate())
	})
	if err != nil {
		return err
	}
	im.logger.Info("camera disconnected")
	return nil
}

// ThermalSize returns the dimensions of thermal frames.
func (im *Imager) ThermalSize() (Size, error) {
	return im.querySize(opThermalSize, func(n Native, w, h *int32) int32 {
		return n.GetThermalImageSize(w, h)
	})
}

// PaletteSize returns the dimensions of palette frames. These may differ
// from the thermal size because of stride alignment in the SDK.
func (im *Imager) PaletteSize() (Size, error) {
	return im.querySize(opPaletteSize, func(n Native, w, h *int32) int32 {
		return n.GetPaletteImageSize(w, h)
	})
}

func (im *Imager) querySize(op string, fn func(n Native, w, h *int32) int32) (Size, error) {
	var w, h int32
	err := im.call(op, func(n Native) error {
		return check(op, ErrQuery, fn(n, &w, &h))
	})
	if err != nil {
		return Size{}, err
	}
	return Size{Width: int(w), Height: int(h)}, nil
}

// ReadThermal fetches one thermal frame of the given size. size must match
// what ThermalSize reported; the SDK does not check.
func (im *Imager) ReadThermal(size Size) (*ThermalFrame, error) {
	if err := validateSize(opThermalImage, size, 1); err != nil {
		return nil, err
	}

	data := make([]uint16, size.Pixels())
	w, h := int32(size.Width), int32(size.Height)
	err := im.call(opThermalImage, func(n Native) error {
		return check(opThermalImage, ErrAcquisition, n.GetThermalImage(&w, &h, data))
	})
	if err != nil {
		return nil, err
	}
	return &ThermalFrame{Size: size, Data: data, CapturedAt: im.now()}, nil
}

// ReadPalette fetches one false-color frame of the given size as
// interleaved RGB.
func (im *Imager) ReadPalette(size Size) (*PaletteFrame, error) {
	if err := validateSize(opPaletteImage, size, 3); err != nil {
		return nil, err
	}

	data := make([]uint8, size.Pixels()*3)
	w, h := int32(size.Width), int32(size.Height)
	err := im.call(opPaletteImage, func(n Native) error {
		return check(opPaletteImage, ErrAcquisition, n.GetPaletteImage(&w, &h, data))
	})
	if err != nil {
		return nil, err
	}
	return &PaletteFrame{Size: size, Data: data, CapturedAt: im.now()}, nil
}

// ReadThermalAndPalette fetches a thermal frame and the matching palette
// frame in one native call. Both frames describe the same exposure.
func (im *Imager) ReadThermalAndPalette(thermal, palette Size) (*ThermalFrame, *PaletteFrame, error) {
	if err := validateSize(opThermalPaletteImage, thermal, 1); err != nil {
		return nil, nil, err
	}
	if err := validateSize(opThermalPaletteImage, palette, 3); err != nil {
		return nil, nil, err
	}

	tdata := make([]uint16, thermal.Pixels())
	pdata := make([]uint8, palette.Pixels()*3)
	err := im.call(opThermalPaletteImage, func(n Native) error {
		code := n.GetThermalPaletteImage(
			int32(thermal.Width), int32(thermal.Height), tdata,
			int32(palette.Width), int32(palette.Height), pdata,
		)
		return check(opThermalPaletteImage, ErrAcquisition, code)
	})
	if err != nil {
		return nil, nil, err
	}

	at := im.now()
	return &ThermalFrame{Size: thermal, Data: tdata, CapturedAt: at},
		&PaletteFrame{Size: palette, Data: pdata, CapturedAt: at},
		nil
}

// Grab queries both sizes and reads one combined frame. Use it for one-off
// snapshots; loops should query sizes once and call ReadThermalAndPalette.
func (im *Imager) Grab() (*ThermalFrame, *PaletteFrame, error) {
	tsize, err := im.ThermalSize()
	if err != nil {
		return nil, nil, err
	}
	psize, err := im.PaletteSize()
	if err != nil {
		return nil, nil, err
	}
	return im.ReadThermalAndPalette(tsize, psize)
}

// SetPalette selects the false-color palette used for palette frames.
func (im *Imager) SetPalette(p Palette) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPalette, int32(p))
	}
	err := im.call(opSetPalette, func(n Native) error {
		return check(opSetPalette, ErrConfiguration, n.SetPalette(int32(p)))
	})
	if err != nil {
		return err
	}
	im.logger.Debug("palette set", zap.Stringer("palette", p))
	return nil
}

// SetShutterMode switches between manual and automatic shutter cycling.
func (im *Imager) SetShutterMode(mode ShutterMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidShutterMode, int32(mode))
	}
	err := im.call(opSetShutterMode, func(n Native) error {
		return check(opSetShutterMode, ErrConfiguration, n.SetShutterMode(int32(mode)))
	})
	if err != nil {
		return err
	}
	im.logger.Debug("shutter mode set", zap.Stringer("mode", mode))
	return nil
}

// TriggerShutterFlag forces a single shutter cycle.
func (im *Imager) TriggerShutterFlag() error {
	return im.call(opTriggerShutterFlag, func(n Native) error {
		return check(opTriggerShutterFlag, ErrConfiguration, n.TriggerShutterFlag())
	})
}

// LaunchDaemon starts the imager daemon process used by TCP sessions.
func (im *Imager) LaunchDaemon() error {
	err := im.call(opDaemonLaunch, func(n Native) error {
		return check(opDaemonLaunch, ErrDaemon, n.DaemonLaunch())
	})
	if err != nil {
		return err
	}
	im.logger.Info("imager daemon launched")
	return nil
}

// DaemonRunning reports whether the imager daemon is up. The SDK returns 0
// for running and -1 for not started; any other status is an error.
func (im *Imager) DaemonRunning() (bool, error) {
	var running bool
	err := im.call(opDaemonIsRunning, func(n Native) error {
		code := n.DaemonIsRunning()
		switch Code(code) {
		case CodeOK:
			running = true
			return nil
		case CodeError:
			running = false
			return nil
		default:
			return newError(opDaemonIsRunning, ErrDaemon, code, describe(opDaemonIsRunning, Code(code)))
		}
	})
	return running, err
}

// KillDaemon stops the imager daemon process.
func (im *Imager) KillDaemon() error {
	err := im.call(opDaemonKill, func(n Native) error {
		return check(opDaemonKill, ErrDaemon, n.DaemonKill())
	})
	if err != nil {
		return err
	}
	im.logger.Info("imager daemon killed")
	return nil
}

// Close releases the library handle. It does not terminate an open session;
// call Disconnect first. Close is idempotent, and every later call fails
// with ErrClosed.
func (im *Imager) Close() error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.closed {
		return nil
	}
	im.closed = true

	if im.release != nil {
		if err := im.release(); err != nil {
			return fmt.Errorf("irimager: release library: %w", err)
		}
	}
	return nil
}
