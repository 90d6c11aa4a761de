package irimager

import "sync"

var _ Native = (*MockNative)(nil)

// MockCall records one forwarded native call.
type MockCall struct {
	Op   string
	Args []any
}

// MockNative is an in-memory Native for tests and dry runs. It returns the
// code scripted per operation (0 by default), reports ThermalSize and
// PaletteSize from its fields and fills frame buffers through FillThermal
// and FillPalette.
//
// Calls made before a successful usb_init or tcp_init return -1 from size
// queries and frame reads, mirroring an uninitialized SDK, unless
// SkipInitCheck is set.
type MockNative struct {
	mu sync.Mutex

	ThermalSize   Size
	PaletteSize   Size
	Codes         map[string]int32
	Running       bool
	SkipInitCheck bool

	// FillThermal and FillPalette write frame content; nil leaves zeros.
	FillThermal func(data []uint16)
	FillPalette func(data []uint8)

	connected bool
	calls     []MockCall
}

// NewMockNative returns a mock reporting a 160x120 thermal and palette size.
func NewMockNative() *MockNative {
	return &MockNative{
		ThermalSize: Size{Width: 160, Height: 120},
		PaletteSize: Size{Width: 160, Height: 120},
		Codes:       make(map[string]int32),
	}
}

// SetCode scripts the status returned for op (e.g. "tcp_init").
func (m *MockNative) SetCode(op string, code int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Codes == nil {
		m.Codes = make(map[string]int32)
	}
	m.Codes[op] = code
}

// Calls returns a copy of every call recorded so far.
func (m *MockNative) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent call for op.
func (m *MockNative) LastCall(op string) (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Op == op {
			return m.calls[i], true
		}
	}
	return MockCall{}, false
}

// Connected reports whether an init call succeeded without a later terminate.
func (m *MockNative) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// record appends a call and returns its scripted code. Caller holds m.mu.
func (m *MockNative) record(op string, args ...any) int32 {
	m.calls = append(m.calls, MockCall{Op: op, Args: args})
	return m.Codes[op]
}

func (m *MockNative) needsSession(code int32) int32 {
	if code == 0 && !m.connected && !m.SkipInitCheck {
		return int32(CodeError)
	}
	return code
}

func (m *MockNative) USBInit(xmlConfig, formatsDef, logFile string) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.record(opUSBInit, xmlConfig, formatsDef, logFile)
	if code == 0 {
		m.connected = true
	}
	return code
}

func (m *MockNative) TCPInit(ip string, port int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.record(opTCPInit, ip, port)
	if code == 0 {
		m.connected = true
	}
	return code
}

func (m *MockNative) Terminate() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.record(opTerminate)
	if code == 0 {
		m.connected = false
	}
	return code
}

func (m *MockNative) GetThermalImageSize(w, h *int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.needsSession(m.record(opThermalSize))
	if code == 0 {
		*w, *h = int32(m.ThermalSize.Width), int32(m.ThermalSize.Height)
	}
	return code
}

func (m *MockNative) GetPaletteImageSize(w, h *int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.needsSession(m.record(opPaletteSize))
	if code == 0 {
		*w, *h = int32(m.PaletteSize.Width), int32(m.PaletteSize.Height)
	}
	return code
}

func (m *MockNative) GetThermalImage(w, h *int32, data []uint16) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.needsSession(m.record(opThermalImage, *w, *h, len(data)))
	if code == 0 && m.FillThermal != nil {
		m.FillThermal(data)
	}
	return code
}

func (m *MockNative) GetPaletteImage(w, h *int32, data []uint8) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.needsSession(m.record(opPaletteImage, *w, *h, len(data)))
	if code == 0 && m.FillPalette != nil {
		m.FillPalette(data)
	}
	return code
}

func (m *MockNative) GetThermalPaletteImage(wt, ht int32, thermal []uint16, wp, hp int32, palette []uint8) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.needsSession(m.record(opThermalPaletteImage, wt, ht, len(thermal), wp, hp, len(palette)))
	if code == 0 {
		if m.FillThermal != nil {
			m.FillThermal(thermal)
		}
		if m.FillPalette != nil {
			m.FillPalette(palette)
		}
	}
	return code
}

func (m *MockNative) SetPalette(id int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(opSetPalette, id)
}

func (m *MockNative) SetShutterMode(mode int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(opSetShutterMode, mode)
}

func (m *MockNative) TriggerShutterFlag() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(opTriggerShutterFlag)
}

func (m *MockNative) DaemonLaunch() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.record(opDaemonLaunch)
	if code == 0 {
		m.Running = true
	}
	return code
}

// DaemonIsRunning returns the scripted code when one is set, otherwise 0
// when Running and -1 when not.
func (m *MockNative) DaemonIsRunning() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, scripted := m.Codes[opDaemonIsRunning]
	m.calls = append(m.calls, MockCall{Op: opDaemonIsRunning})
	if scripted {
		return code
	}
	if m.Running {
		return 0
	}
	return -1
}

func (m *MockNative) DaemonKill() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.record(opDaemonKill)
	if code == 0 {
		m.Running = false
	}
	return code
}
