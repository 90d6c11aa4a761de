package logging

import (
	"time"

	"go.uber.org/zap/zapcore"

	"go_irimager/irimager"
)

// FrameMetrics describes one captured frame pair. Implements
// zapcore.ObjectMarshaler for structured logging.
type FrameMetrics struct {
	// Seq is the frame's sequence number within its session, from 1.
	Seq int64 `json:"seq"`

	Thermal irimager.Size `json:"thermal"`
	Palette irimager.Size `json:"palette"`

	Stats irimager.Stats `json:"stats"`

	// Attempts counts native reads including retries.
	Attempts int `json:"attempts"`

	// Duration covers the native read plus snapshot encoding.
	Duration time.Duration `json:"duration"`
}

// NewFrameMetrics computes stats for thermal and fills a FrameMetrics.
// palette may be nil.
func NewFrameMetrics(seq int64, thermal *irimager.ThermalFrame, palette *irimager.PaletteFrame, attempts int, duration time.Duration) FrameMetrics {
	m := FrameMetrics{Seq: seq, Attempts: attempts, Duration: duration}
	if thermal != nil {
		m.Thermal = thermal.Size
		m.Stats = thermal.Stats()
	}
	if palette != nil {
		m.Palette = palette.Size
	}
	return m
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Temperatures are in
// degrees Celsius, duration in milliseconds.
func (m FrameMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("seq", m.Seq)
	enc.AddString("thermal", m.Thermal.String())
	if m.Palette.Valid() {
		enc.AddString("palette", m.Palette.String())
	}
	enc.AddFloat64("min_c", m.Stats.MinC)
	enc.AddFloat64("max_c", m.Stats.MaxC)
	enc.AddFloat64("mean_c", m.Stats.MeanC)
	enc.AddInt("hot_x", m.Stats.HotX)
	enc.AddInt("hot_y", m.Stats.HotY)
	enc.AddInt("attempts", m.Attempts)
	enc.AddInt64("duration_ms", m.Duration.Milliseconds())
	return nil
}
