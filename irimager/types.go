package irimager

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultTCPPort is the port the imager daemon listens on unless configured
// otherwise.
const DefaultTCPPort = 1337

// Size is a frame dimension pair as reported by the SDK.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels returns Width*Height.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// String formats the size as WxH.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// MaxBufferElements caps the element count of a single frame buffer. The
// largest supported sensors are well under 2 megapixels.
const MaxBufferElements = 1 << 26

// validateSize rejects sizes that would produce an empty buffer, that do not
// fit the SDK's int32 dimensions, or whose buffer of channels elements per
// pixel would exceed MaxBufferElements.
func validateSize(op string, s Size, channels int) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %s requires positive dimensions, got %s", ErrInvalidSize, op, s)
	}
	if s.Width > math.MaxInt32 || s.Height > math.MaxInt32 {
		return fmt.Errorf("%w: %s dimensions exceed int32, got %s", ErrInvalidSize, op, s)
	}
	if s.Width > MaxBufferElements/s.Height/channels {
		return fmt.Errorf("%w: %s buffer for %s exceeds %d elements", ErrInvalidSize, op, s, MaxBufferElements)
	}
	return nil
}

// USBConfig holds the paths passed to evo_irimager_usb_init.
// Empty fields are passed as NULL so the SDK falls back to its defaults.
type USBConfig struct {
	// XMLConfig is the camera configuration file (generic.xml or a
	// serial-specific file).
	XMLConfig string `yaml:"xml_config" json:"xml_config"`
	// FormatsDef is the formats definition file shipped with the SDK.
	FormatsDef string `yaml:"formats_def" json:"formats_def"`
	// LogFile is where the SDK writes its own log.
	LogFile string `yaml:"log_file" json:"log_file"`
}

// Palette selects the false-color mapping applied by the SDK to palette
// images.
type Palette int32

// Palettes in the order of the SDK EnumOptrisColoringPalette.
const (
	PaletteAlarmBlue   Palette = 1
	PaletteAlarmBlueHi Palette = 2
	PaletteGrayBW      Palette = 3
	PaletteGrayWB      Palette = 4
	PaletteAlarmGreen  Palette = 5
	PaletteIron        Palette = 6
	PaletteIronHi      Palette = 7
	PaletteMedical     Palette = 8
	PaletteRainbow     Palette = 9
	PaletteRainbowHi   Palette = 10
	PaletteAlarmRed    Palette = 11
)

var paletteNames = map[Palette]string{
	PaletteAlarmBlue:   "alarm-blue",
	PaletteAlarmBlueHi: "alarm-blue-hi",
	PaletteGrayBW:      "gray-bw",
	PaletteGrayWB:      "gray-wb",
	PaletteAlarmGreen:  "alarm-green",
	PaletteIron:        "iron",
	PaletteIronHi:      "iron-hi",
	PaletteMedical:     "medical",
	PaletteRainbow:     "rainbow",
	PaletteRainbowHi:   "rainbow-hi",
	PaletteAlarmRed:    "alarm-red",
}

// Palettes returns every palette in id order.
func Palettes() []Palette {
	out := make([]Palette, 0, len(paletteNames))
	for p := PaletteAlarmBlue; p <= PaletteAlarmRed; p++ {
		out = append(out, p)
	}
	return out
}

// Valid reports whether p is one of the SDK palettes.
func (p Palette) Valid() bool {
	_, ok := paletteNames[p]
	return ok
}

func (p Palette) String() string {
	if name, ok := paletteNames[p]; ok {
		return name
	}
	return fmt.Sprintf("palette(%d)", int32(p))
}

// MarshalJSON encodes the palette by name.
func (p Palette) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either a palette name or its numeric id.
func (p *Palette) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParsePalette(name)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	var id int32
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPalette, string(data))
	}
	if !Palette(id).Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPalette, id)
	}
	*p = Palette(id)
	return nil
}

// ParsePalette accepts a palette name (case-insensitive, "_" or "-"
// separated) or a numeric id 1..11.
func ParsePalette(s string) (Palette, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if id, err := strconv.Atoi(s); err == nil {
		if p := Palette(id); p.Valid() {
			return p, nil
		}
		return 0, fmt.Errorf("%w: %d (expected 1-11)", ErrInvalidPalette, id)
	}
	s = strings.ReplaceAll(s, "_", "-")
	for p, name := range paletteNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPalette, s)
}

// ShutterMode controls whether the SDK cycles the shutter flag on its own.
type ShutterMode int32

const (
	ShutterManual ShutterMode = 0
	ShutterAuto   ShutterMode = 1
)

// Valid reports whether m is manual or auto.
func (m ShutterMode) Valid() bool {
	return m == ShutterManual || m == ShutterAuto
}

func (m ShutterMode) String() string {
	switch m {
	case ShutterManual:
		return "manual"
	case ShutterAuto:
		return "auto"
	default:
		return fmt.Sprintf("shutter(%d)", int32(m))
	}
}

// MarshalJSON encodes the mode by name.
func (m ShutterMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// ParseShutterMode accepts "manual", "auto", "0" or "1".
func ParseShutterMode(s string) (ShutterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "0":
		return ShutterManual, nil
	case "auto", "1":
		return ShutterAuto, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidShutterMode, s)
	}
}
