package liveview

import (
	"time"

	"go_irimager/capture"
	"go_irimager/irimager"
)

var testCapturedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// newTestCapture builds a 4x3 capture with a 40°C hot spot at (2,1) and a
// solid red palette image.
func newTestCapture(seq int64) *capture.Capture {
	size := irimager.Size{Width: 4, Height: 3}
	thermal := &irimager.ThermalFrame{
		Size:       size,
		Data:       make([]uint16, size.Pixels()),
		CapturedAt: testCapturedAt,
	}
	for i := range thermal.Data {
		thermal.Data[i] = irimager.CelsiusToRaw(20)
	}
	thermal.Data[1*size.Width+2] = irimager.CelsiusToRaw(40)

	palette := &irimager.PaletteFrame{
		Size:       size,
		Data:       make([]uint8, size.Pixels()*3),
		CapturedAt: testCapturedAt,
	}
	for i := 0; i < len(palette.Data); i += 3 {
		palette.Data[i] = 0xff
	}

	return &capture.Capture{
		ID:        "frame-id",
		SessionID: "session-id",
		Seq:       seq,
		Thermal:   thermal,
		Palette:   palette,
		Stats:     thermal.Stats(),
		Attempts:  1,
	}
}
