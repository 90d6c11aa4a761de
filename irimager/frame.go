package irimager

import (
	"image"
	"image/color"
	"math"
	"time"

	"golang.org/x/image/draw"
)

// Raw thermal samples encode temperature as (celsius*10)+1000.
const (
	rawOffset = 1000.0
	rawScale  = 10.0
)

// RawToCelsius converts a raw thermal sample to degrees Celsius.
func RawToCelsius(raw uint16) float64 {
	return (float64(raw) - rawOffset) / rawScale
}

// CelsiusToRaw converts a temperature to the nearest raw sample, clamped to
// the uint16 range.
func CelsiusToRaw(c float64) uint16 {
	v := math.Round(c*rawScale + rawOffset)
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}

// ThermalFrame is one thermal image, row-major, one raw sample per pixel.
type ThermalFrame struct {
	Size
	Data       []uint16
	CapturedAt time.Time
}

// At returns the raw sample at (x, y).
func (f *ThermalFrame) At(x, y int) uint16 {
	return f.Data[y*f.Width+x]
}

// CelsiusAt returns the temperature at (x, y).
func (f *ThermalFrame) CelsiusAt(x, y int) float64 {
	return RawToCelsius(f.At(x, y))
}

// Stats summarizes a thermal frame in degrees Celsius.
type Stats struct {
	MinC  float64 `json:"min_c"`
	MaxC  float64 `json:"max_c"`
	MeanC float64 `json:"mean_c"`
	// HotX, HotY locate the first pixel holding MaxC.
	HotX int `json:"hot_x"`
	HotY int `json:"hot_y"`
}

// Stats computes min, max, mean and the hottest pixel. An empty frame
// returns the zero Stats.
func (f *ThermalFrame) Stats() Stats {
	if len(f.Data) == 0 {
		return Stats{}
	}

	lo, hi := f.Data[0], f.Data[0]
	hotIdx := 0
	var sum float64
	for i, v := range f.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
			hotIdx = i
		}
		sum += float64(v)
	}

	mean := sum / float64(len(f.Data))
	st := Stats{
		MinC:  RawToCelsius(lo),
		MaxC:  RawToCelsius(hi),
		MeanC: (mean - rawOffset) / rawScale,
	}
	if f.Width > 0 {
		st.HotX = hotIdx % f.Width
		st.HotY = hotIdx / f.Width
	}
	return st
}

// RawImage returns the frame as a 16-bit grayscale image holding the raw
// samples unchanged. Suitable for lossless archiving.
func (f *ThermalFrame) RawImage() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: f.At(x, y)})
		}
	}
	return img
}

// Gray16 returns the frame contrast-stretched so the coldest pixel is black
// and the hottest is white. A uniform frame maps to mid gray.
func (f *ThermalFrame) Gray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	if len(f.Data) == 0 {
		return img
	}

	lo, hi := f.Data[0], f.Data[0]
	for _, v := range f.Data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := float64(hi - lo)

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := uint16(math.MaxUint16 / 2)
			if span > 0 {
				v = uint16(float64(f.At(x, y)-lo) / span * math.MaxUint16)
			}
			img.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	return img
}

// PaletteFrame is one false-color image, row-major, interleaved RGB.
type PaletteFrame struct {
	Size
	Data       []uint8
	CapturedAt time.Time
}

// At returns the color at (x, y).
func (f *PaletteFrame) At(x, y int) color.RGBA {
	i := (y*f.Width + x) * 3
	return color.RGBA{R: f.Data[i], G: f.Data[i+1], B: f.Data[i+2], A: 0xff}
}

// RGBA converts the frame to an opaque image.RGBA.
func (f *PaletteFrame) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Data) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Data[i]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// Scale resizes img by an integer factor with CatmullRom interpolation.
// Factors below 2 return img unchanged.
func Scale(img image.Image, factor int) image.Image {
	if factor < 2 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
