// Package irimager binds the Optris infrared imaging SDK (libirimager) to Go.
//
// The SDK exposes a flat C ABI (evo_irimager_*) that opens an implicit,
// process-wide camera session over USB or over TCP to the imager daemon.
// This package loads that shared library at runtime, forwards calls to it and
// converts its integer status codes into typed Go errors. Frame acquisition,
// palette coloring and shutter calibration all happen inside the SDK.
//
// # Public API
//
//   - Load(path string, opts ...Option) (*Imager, error)
//   - New(native Native, opts ...Option) *Imager
//   - (*Imager) ConnectUSB / ConnectTCP / Disconnect
//   - (*Imager) ThermalSize / PaletteSize
//   - (*Imager) ReadThermal / ReadPalette / ReadThermalAndPalette
//   - (*Imager) SetPalette / SetShutterMode / TriggerShutterFlag
//   - (*Imager) LaunchDaemon / DaemonRunning / KillDaemon
//   - (*Imager) Close
//
// # Quick Start
//
//	cam, err := irimager.Load("/usr/lib/libirimager.so")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Close()
//
//	if err := cam.ConnectUSB(irimager.USBConfig{XMLConfig: "generic.xml"}); err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Disconnect()
//
//	size, err := cam.ThermalSize()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	frame, err := cam.ReadThermal(size)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("center: %.1f C\n", frame.CelsiusAt(size.Width/2, size.Height/2))
//
// # Build Tags
//
// Library loading uses purego, so no C toolchain is required:
//
//   - Linux / macOS: dlopen through purego
//   - Windows: LoadLibrary through golang.org/x/sys/windows
//   - Anything else, or builds with -tags irstub: Load returns ErrNotBuilt
//
// New accepts any Native implementation, which is how tests drive the
// binding through MockNative without the vendor library.
//
// # Error Handling
//
// Every non-zero status becomes an *Error carrying the operation name and the
// raw code. Match the failing operation class and the severity separately:
//
//	err := cam.ConnectTCP("10.0.0.5", 0)
//	switch {
//	case errors.Is(err, irimager.ErrHostNotFound):
//	    // daemon not running or wrong address, retry later
//	case errors.Is(err, irimager.ErrFatal):
//	    // give up
//	}
//
// The binding never retries. Callers decide whether ErrRecoverable failures
// are worth another attempt.
//
// # Concurrency
//
// The SDK keeps one implicit session and is not safe for overlapping calls.
// Imager serializes every native call behind a mutex, so a single Imager may
// be shared between goroutines, but there is no cancellation: a hung native
// call blocks every other caller.
package irimager
