package irimager

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func connectedImager(t *testing.T) (*Imager, *MockNative) {
	t.Helper()
	mock := NewMockNative()
	im := New(mock)
	if err := im.ConnectUSB(USBConfig{}); err != nil {
		t.Fatalf("ConnectUSB: %v", err)
	}
	return im, mock
}

func TestReadWithQueriedSize(t *testing.T) {
	sizes := []Size{{1, 1}, {160, 120}, {382, 288}, {640, 480}, {764, 480}}

	for _, size := range sizes {
		t.Run(size.String(), func(t *testing.T) {
			im, mock := connectedImager(t)
			mock.ThermalSize = size
			mock.PaletteSize = size

			ts, err := im.ThermalSize()
			if err != nil {
				t.Fatalf("ThermalSize: %v", err)
			}
			if ts != size {
				t.Fatalf("ThermalSize = %v, want %v", ts, size)
			}
			thermal, err := im.ReadThermal(ts)
			if err != nil {
				t.Fatalf("ReadThermal: %v", err)
			}
			if len(thermal.Data) != size.Pixels() {
				t.Errorf("thermal buffer len = %d, want %d", len(thermal.Data), size.Pixels())
			}

			ps, err := im.PaletteSize()
			if err != nil {
				t.Fatalf("PaletteSize: %v", err)
			}
			palette, err := im.ReadPalette(ps)
			if err != nil {
				t.Fatalf("ReadPalette: %v", err)
			}
			if len(palette.Data) != size.Pixels()*3 {
				t.Errorf("palette buffer len = %d, want %d", len(palette.Data), size.Pixels()*3)
			}
		})
	}
}

func TestReadThermalAndPalette_IndependentSizes(t *testing.T) {
	im, mock := connectedImager(t)
	mock.ThermalSize = Size{382, 288}
	mock.PaletteSize = Size{384, 288}
	mock.FillThermal = func(d []uint16) {
		for i := range d {
			d[i] = 1250
		}
	}

	thermal, palette, err := im.Grab()
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if thermal.Size != mock.ThermalSize || palette.Size != mock.PaletteSize {
		t.Errorf("sizes = %v / %v", thermal.Size, palette.Size)
	}
	if len(palette.Data) != 384*288*3 {
		t.Errorf("palette len = %d", len(palette.Data))
	}
	if thermal.CelsiusAt(0, 0) != 25 {
		t.Errorf("CelsiusAt = %v, want 25", thermal.CelsiusAt(0, 0))
	}

	call, ok := mock.LastCall(opThermalPaletteImage)
	if !ok {
		t.Fatal("combined call not forwarded")
	}
	want := []any{int32(382), int32(288), 382 * 288, int32(384), int32(288), 384 * 288 * 3}
	for i, arg := range want {
		if call.Args[i] != arg {
			t.Errorf("arg %d = %v, want %v", i, call.Args[i], arg)
		}
	}
}

func TestErrorKindPerOperation(t *testing.T) {
	tests := []struct {
		op   string
		kind error
		run  func(im *Imager) error
	}{
		{opUSBInit, ErrConnection, func(im *Imager) error { return im.ConnectUSB(USBConfig{}) }},
		{opTCPInit, ErrConnection, func(im *Imager) error { return im.ConnectTCP("localhost", 0) }},
		{opTerminate, ErrTeardown, func(im *Imager) error { return im.Disconnect() }},
		{opThermalSize, ErrQuery, func(im *Imager) error { _, err := im.ThermalSize(); return err }},
		{opPaletteSize, ErrQuery, func(im *Imager) error { _, err := im.PaletteSize(); return err }},
		{opThermalImage, ErrAcquisition, func(im *Imager) error { _, err := im.ReadThermal(Size{4, 3}); return err }},
		{opPaletteImage, ErrAcquisition, func(im *Imager) error { _, err := im.ReadPalette(Size{4, 3}); return err }},
		{opThermalPaletteImage, ErrAcquisition, func(im *Imager) error {
			_, _, err := im.ReadThermalAndPalette(Size{4, 3}, Size{4, 3})
			return err
		}},
		{opSetPalette, ErrConfiguration, func(im *Imager) error { return im.SetPalette(PaletteIron) }},
		{opSetShutterMode, ErrConfiguration, func(im *Imager) error { return im.SetShutterMode(ShutterAuto) }},
		{opTriggerShutterFlag, ErrConfiguration, func(im *Imager) error { return im.TriggerShutterFlag() }},
		{opDaemonLaunch, ErrDaemon, func(im *Imager) error { return im.LaunchDaemon() }},
		{opDaemonKill, ErrDaemon, func(im *Imager) error { return im.KillDaemon() }},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			mock := NewMockNative()
			mock.SkipInitCheck = true
			mock.SetCode(tt.op, -1)
			err := tt.run(New(mock))

			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want kind %v", err, tt.kind)
			}
			var nerr *Error
			if !errors.As(err, &nerr) {
				t.Fatalf("err %T is not *Error", err)
			}
			if nerr.Code != -1 || nerr.Op != tt.op {
				t.Errorf("Error = {Op: %s, Code: %d}, want {%s, -1}", nerr.Op, nerr.Code, tt.op)
			}
			if !errors.Is(err, ErrRecoverable) || errors.Is(err, ErrFatal) {
				t.Error("-1 should be recoverable and not fatal")
			}
		})
	}
}

func TestUndocumentedStatusReported(t *testing.T) {
	const garbage = 0x5a5a
	tests := []struct {
		op  string
		run func(im *Imager) error
	}{
		{opSetPalette, func(im *Imager) error { return im.SetPalette(PaletteIron) }},
		{opThermalPaletteImage, func(im *Imager) error {
			_, _, err := im.ReadThermalAndPalette(Size{4, 3}, Size{4, 3})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			mock := NewMockNative()
			mock.SkipInitCheck = true
			mock.SetCode(tt.op, garbage)

			err := tt.run(New(mock))
			code, ok := CodeOf(err)
			if !ok || code != garbage {
				t.Fatalf("CodeOf(%v) = %d, %v", err, code, ok)
			}
			if IsRecoverable(err) || IsFatal(err) {
				t.Errorf("status %d should be neither recoverable nor fatal", garbage)
			}
			if !strings.Contains(err.Error(), "unexpected status") {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestConnectTCP_FatalVsHostNotFound(t *testing.T) {
	mock := NewMockNative()
	mock.SetCode(opTCPInit, -2)
	err := New(mock).ConnectTCP("10.0.0.5", 0)
	if !errors.Is(err, ErrFatal) {
		t.Errorf("-2 should be fatal: %v", err)
	}
	if errors.Is(err, ErrRecoverable) || errors.Is(err, ErrHostNotFound) {
		t.Errorf("-2 should not look recoverable: %v", err)
	}

	mock.SetCode(opTCPInit, -1)
	err = New(mock).ConnectTCP("10.0.0.5", 0)
	if !errors.Is(err, ErrHostNotFound) || !errors.Is(err, ErrRecoverable) {
		t.Errorf("-1 should be host-not-found and recoverable: %v", err)
	}
	if errors.Is(err, ErrFatal) {
		t.Errorf("-1 should not be fatal: %v", err)
	}
}

func TestReadThermal_FatalOverTCP(t *testing.T) {
	mock := NewMockNative()
	im := New(mock)
	if err := im.ConnectTCP("", 0); err != nil {
		t.Fatalf("ConnectTCP: %v", err)
	}
	mock.SetCode(opThermalImage, -2)

	frame, err := im.ReadThermal(Size{160, 120})
	if frame != nil {
		t.Error("frame should be nil on error")
	}
	if !IsFatal(err) || !errors.Is(err, ErrAcquisition) {
		t.Errorf("err = %v, want fatal acquisition error", err)
	}
}

func TestConnectTCP_Defaults(t *testing.T) {
	mock := NewMockNative()
	if err := New(mock).ConnectTCP("", 0); err != nil {
		t.Fatalf("ConnectTCP: %v", err)
	}
	call, _ := mock.LastCall(opTCPInit)
	if call.Args[0] != "localhost" || call.Args[1] != int32(DefaultTCPPort) {
		t.Errorf("args = %v, want [localhost 1337]", call.Args)
	}

	if err := New(mock).ConnectTCP("host", 70000); !errors.Is(err, ErrConnection) {
		t.Errorf("out of range port: err = %v", err)
	}
}

func TestDaemonRunning_Polarity(t *testing.T) {
	tests := []struct {
		code    int32
		running bool
		wantErr bool
	}{
		{0, true, false},
		{-1, false, false},
		{-2, false, true},
		{1, false, true},
	}

	for _, tt := range tests {
		mock := NewMockNative()
		mock.SetCode(opDaemonIsRunning, tt.code)
		running, err := New(mock).DaemonRunning()
		if running != tt.running {
			t.Errorf("code %d: running = %v, want %v", tt.code, running, tt.running)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("code %d: err = %v, wantErr %v", tt.code, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrDaemon) {
			t.Errorf("code %d: err should be ErrDaemon: %v", tt.code, err)
		}
	}
}

func TestDaemonLifecycle(t *testing.T) {
	mock := NewMockNative()
	im := New(mock)

	if running, _ := im.DaemonRunning(); running {
		t.Fatal("daemon should start stopped")
	}
	if err := im.LaunchDaemon(); err != nil {
		t.Fatalf("LaunchDaemon: %v", err)
	}
	if running, _ := im.DaemonRunning(); !running {
		t.Error("daemon should be running after launch")
	}
	if err := im.KillDaemon(); err != nil {
		t.Fatalf("KillDaemon: %v", err)
	}
	if running, _ := im.DaemonRunning(); running {
		t.Error("daemon should be stopped after kill")
	}
}

func TestReadBeforeConnect(t *testing.T) {
	// DOING: read frames on a mock that has not seen an init call
	// EXPECT: query/acquisition errors and nil frames, never empty buffers
	im := New(NewMockNative())

	if _, err := im.ThermalSize(); !errors.Is(err, ErrQuery) {
		t.Errorf("ThermalSize err = %v, want ErrQuery", err)
	}
	frame, err := im.ReadThermal(Size{160, 120})
	if frame != nil || !errors.Is(err, ErrAcquisition) {
		t.Errorf("ReadThermal = %v, %v; want nil, ErrAcquisition", frame, err)
	}
	pframe, err := im.ReadPalette(Size{160, 120})
	if pframe != nil || !errors.Is(err, ErrAcquisition) {
		t.Errorf("ReadPalette = %v, %v; want nil, ErrAcquisition", pframe, err)
	}
	tf, pf, err := im.ReadThermalAndPalette(Size{160, 120}, Size{160, 120})
	if tf != nil || pf != nil || !errors.Is(err, ErrAcquisition) {
		t.Errorf("ReadThermalAndPalette err = %v", err)
	}
}

func TestSetPalette_ForwardsID(t *testing.T) {
	mock := NewMockNative()
	im := New(mock)

	for id := int32(1); id <= 11; id++ {
		if err := im.SetPalette(Palette(id)); err != nil {
			t.Fatalf("SetPalette(%d): %v", id, err)
		}
		call, ok := mock.LastCall(opSetPalette)
		if !ok || call.Args[0] != id {
			t.Errorf("forwarded %v, want %d", call.Args, id)
		}
	}
}

func TestSetPalette_RejectsOutOfRange(t *testing.T) {
	mock := NewMockNative()
	im := New(mock)
	for _, id := range []Palette{0, 12, -1} {
		if err := im.SetPalette(id); !errors.Is(err, ErrInvalidPalette) {
			t.Errorf("SetPalette(%d) err = %v", id, err)
		}
	}
	if len(mock.Calls()) != 0 {
		t.Error("invalid palettes must not reach the library")
	}
}

func TestSetShutterMode_Forwards(t *testing.T) {
	mock := NewMockNative()
	im := New(mock)
	for _, mode := range []ShutterMode{ShutterManual, ShutterAuto} {
		if err := im.SetShutterMode(mode); err != nil {
			t.Fatalf("SetShutterMode(%v): %v", mode, err)
		}
		call, _ := mock.LastCall(opSetShutterMode)
		if call.Args[0] != int32(mode) {
			t.Errorf("forwarded %v, want %d", call.Args[0], mode)
		}
	}
	if err := im.SetShutterMode(ShutterMode(2)); !errors.Is(err, ErrInvalidShutterMode) {
		t.Errorf("mode 2 err = %v", err)
	}
}

func TestConnectUSB_ForwardsPaths(t *testing.T) {
	mock := NewMockNative()
	cfg := USBConfig{XMLConfig: "cam.xml", FormatsDef: "Formats.def"}
	if err := New(mock).ConnectUSB(cfg); err != nil {
		t.Fatalf("ConnectUSB: %v", err)
	}
	call, _ := mock.LastCall(opUSBInit)
	if call.Args[0] != "cam.xml" || call.Args[1] != "Formats.def" || call.Args[2] != "" {
		t.Errorf("args = %v", call.Args)
	}
	if !mock.Connected() {
		t.Error("mock should be connected")
	}
}

func TestInvalidSizeRejectedBeforeNativeCall(t *testing.T) {
	im, mock := connectedImager(t)
	before := len(mock.Calls())

	for _, size := range []Size{{0, 0}, {-1, 10}, {10, 0}} {
		if _, err := im.ReadThermal(size); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("ReadThermal(%v) err = %v", size, err)
		}
		if _, err := im.ReadPalette(size); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("ReadPalette(%v) err = %v", size, err)
		}
	}
	if len(mock.Calls()) != before {
		t.Error("invalid sizes must not reach the library")
	}
}

func TestOversizedBuffersRejected(t *testing.T) {
	im, mock := connectedImager(t)
	before := len(mock.Calls())

	tests := []struct {
		name    string
		size    Size
		thermal bool
		palette bool
	}{
		{"beyond int32", Size{Width: 1 << 33, Height: 1 << 31}, true, true},
		{"product overflow", Size{Width: 1 << 31, Height: 1 << 31}, true, true},
		{"over element cap", Size{Width: 1 << 14, Height: 1 << 13}, true, true},
		{"palette channels over cap", Size{Width: 1 << 13, Height: 1 << 12}, false, true},
		{"largest thermal", Size{Width: 1 << 13, Height: 1 << 13}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSize(opThermalImage, tt.size, 1)
			if got := errors.Is(err, ErrInvalidSize); got != tt.thermal {
				t.Errorf("thermal validate(%v) = %v, want rejected %v", tt.size, err, tt.thermal)
			}
			err = validateSize(opPaletteImage, tt.size, 3)
			if got := errors.Is(err, ErrInvalidSize); got != tt.palette {
				t.Errorf("palette validate(%v) = %v, want rejected %v", tt.size, err, tt.palette)
			}
		})
	}

	if _, err := im.ReadThermal(Size{Width: 1 << 33, Height: 1 << 31}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ReadThermal err = %v", err)
	}
	if _, err := im.ReadPalette(Size{Width: 1 << 13, Height: 1 << 12}); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ReadPalette err = %v", err)
	}
	if len(mock.Calls()) != before {
		t.Error("oversized buffers must not reach the library")
	}
}

func TestDisconnect(t *testing.T) {
	im, mock := connectedImager(t)
	if err := im.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if mock.Connected() {
		t.Error("mock still connected")
	}
	if _, err := im.ThermalSize(); !errors.Is(err, ErrQuery) {
		t.Errorf("query after disconnect err = %v", err)
	}
}

func TestClose(t *testing.T) {
	released := 0
	im := New(NewMockNative())
	im.release = func() error {
		released++
		return nil
	}

	if err := im.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := im.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if released != 1 {
		t.Errorf("release called %d times, want 1", released)
	}
	if err := im.ConnectUSB(USBConfig{}); !errors.Is(err, ErrClosed) {
		t.Errorf("call after Close err = %v, want ErrClosed", err)
	}
}

func TestFramesStampedWithClock(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock := NewMockNative()
	im := New(mock, WithClock(func() time.Time { return at }))
	if err := im.ConnectUSB(USBConfig{}); err != nil {
		t.Fatal(err)
	}
	frame, err := im.ReadThermal(Size{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !frame.CapturedAt.Equal(at) {
		t.Errorf("CapturedAt = %v, want %v", frame.CapturedAt, at)
	}
}

func TestConcurrentReadsAreSerialized(t *testing.T) {
	im, _ := connectedImager(t)
	size := Size{32, 24}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := im.ReadThermalAndPalette(size, size); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent read: %v", err)
	}
}
