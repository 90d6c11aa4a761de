package irimager

// Entry point names without the common prefix. They double as the Op field
// of *Error.
const (
	symbolPrefix = "evo_irimager_"

	opUSBInit             = "usb_init"
	opTCPInit             = "tcp_init"
	opTerminate           = "terminate"
	opThermalSize         = "get_thermal_image_size"
	opPaletteSize         = "get_palette_image_size"
	opThermalImage        = "get_thermal_image"
	opPaletteImage        = "get_palette_image"
	opThermalPaletteImage = "get_thermal_palette_image"
	opSetPalette          = "set_palette"
	opSetShutterMode      = "set_shutter_mode"
	opTriggerShutterFlag  = "trigger_shutter_flag"
	opDaemonLaunch        = "daemon_launch"
	opDaemonIsRunning     = "daemon_is_running"
	opDaemonKill          = "daemon_kill"
)

// Native is the raw SDK ABI. Every method maps onto one evo_irimager_*
// entry point and returns its status unchanged.
//
// Buffers are passed as slices whose length the caller has already matched
// to the dimensions; implementations pass &buf[0] to the library. Empty
// strings in USBInit mean NULL.
//
// The header declares int returns for get_thermal_palette_image and
// set_palette. An SDK build that returns void from either leaves garbage in
// the return register, so those two calls can report spurious errors there.
type Native interface {
	USBInit(xmlConfig, formatsDef, logFile string) int32
	TCPInit(ip string, port int32) int32
	Terminate() int32
	GetThermalImageSize(w, h *int32) int32
	GetPaletteImageSize(w, h *int32) int32
	GetThermalImage(w, h *int32, data []uint16) int32
	GetPaletteImage(w, h *int32, data []uint8) int32
	GetThermalPaletteImage(wt, ht int32, thermal []uint16, wp, hp int32, palette []uint8) int32
	SetPalette(id int32) int32
	SetShutterMode(mode int32) int32
	TriggerShutterFlag() int32
	DaemonLaunch() int32
	DaemonIsRunning() int32
	DaemonKill() int32
}

var _ Native = (*nativeFuncs)(nil)

// nativeFuncs holds the function pointers registered against a loaded
// library. Field types mirror the C signatures.
type nativeFuncs struct {
	usbInit             func(xml, formats, log *byte) int32
	tcpInit             func(ip *byte, port int32) int32
	terminate           func() int32
	getThermalImageSize func(w, h *int32) int32
	getPaletteImageSize func(w, h *int32) int32
	getThermalImage     func(w, h *int32, data *uint16) int32
	getPaletteImage     func(w, h *int32, data *uint8) int32
	getThermalPalette   func(wt, ht int32, thermal *uint16, wp, hp int32, palette *uint8) int32
	setPalette          func(id int32) int32
	setShutterMode      func(mode int32) int32
	triggerShutterFlag  func() int32
	daemonLaunch        func() int32
	daemonIsRunning     func() int32
	daemonKill          func() int32
}

// symbols lists every function pointer to bind, keyed by entry point.
func (f *nativeFuncs) symbols() []struct {
	name string
	fptr any
} {
	return []struct {
		name string
		fptr any
	}{
		{opUSBInit, &f.usbInit},
		{opTCPInit, &f.tcpInit},
		{opTerminate, &f.terminate},
		{opThermalSize, &f.getThermalImageSize},
		{opPaletteSize, &f.getPaletteImageSize},
		{opThermalImage, &f.getThermalImage},
		{opPaletteImage, &f.getPaletteImage},
		{opThermalPaletteImage, &f.getThermalPalette},
		{opSetPalette, &f.setPalette},
		{opSetShutterMode, &f.setShutterMode},
		{opTriggerShutterFlag, &f.triggerShutterFlag},
		{opDaemonLaunch, &f.daemonLaunch},
		{opDaemonIsRunning, &f.daemonIsRunning},
		{opDaemonKill, &f.daemonKill},
	}
}

// cString returns a NUL-terminated copy of s, or nil for the empty string.
func cString(s string) *byte {
	if s == "" {
		return nil
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

func (f *nativeFuncs) USBInit(xmlConfig, formatsDef, logFile string) int32 {
	return f.usbInit(cString(xmlConfig), cString(formatsDef), cString(logFile))
}

func (f *nativeFuncs) TCPInit(ip string, port int32) int32 {
	return f.tcpInit(cString(ip), port)
}

func (f *nativeFuncs) Terminate() int32 { return f.terminate() }

func (f *nativeFuncs) GetThermalImageSize(w, h *int32) int32 {
	return f.getThermalImageSize(w, h)
}

func (f *nativeFuncs) GetPaletteImageSize(w, h *int32) int32 {
	return f.getPaletteImageSize(w, h)
}

func (f *nativeFuncs) GetThermalImage(w, h *int32, data []uint16) int32 {
	return f.getThermalImage(w, h, &data[0])
}

func (f *nativeFuncs) GetPaletteImage(w, h *int32, data []uint8) int32 {
	return f.getPaletteImage(w, h, &data[0])
}

func (f *nativeFuncs) GetThermalPaletteImage(wt, ht int32, thermal []uint16, wp, hp int32, palette []uint8) int32 {
	return f.getThermalPalette(wt, ht, &thermal[0], wp, hp, &palette[0])
}

func (f *nativeFuncs) SetPalette(id int32) int32 { return f.setPalette(id) }
func (f *nativeFuncs) SetShutterMode(mode int32) int32 { return f.setShutterMode(mode) }
func (f *nativeFuncs) TriggerShutterFlag() int32 { return f.triggerShutterFlag() }
func (f *nativeFuncs) DaemonLaunch() int32 { return f.daemonLaunch() }
func (f *nativeFuncs) DaemonIsRunning() int32 { return f.daemonIsRunning() }
func (f *nativeFuncs) DaemonKill() int32 { return f.daemonKill() }
