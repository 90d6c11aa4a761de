package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"go_irimager/irimager"
)

// Snapshot file suffixes, appended to the zero-padded sequence number.
const (
	ThermalSuffix = "_thermal.png"
	PaletteSuffix = "_palette.png"
	partialSuffix = ".tmp"
)

// SnapshotWriter stores each frame as PNG files under
// <dir>/<session id>/. Thermal frames are written as 16-bit grayscale
// holding the raw samples, so temperatures can be recovered exactly;
// palette frames are written as RGB, optionally upscaled.
type SnapshotWriter struct {
	dir         string
	scale       int
	saveThermal bool
	savePalette bool
}

// NewSnapshotWriter creates a writer rooted at dir. scale below 2 keeps the
// palette frame at its native size.
func NewSnapshotWriter(dir string, scale int, saveThermal, savePalette bool) *SnapshotWriter {
	return &SnapshotWriter{
		dir:         dir,
		scale:       scale,
		saveThermal: saveThermal,
		savePalette: savePalette,
	}
}

// Enabled reports whether any file would be written.
func (w *SnapshotWriter) Enabled() bool {
	return w != nil && (w.saveThermal || w.savePalette)
}

// SessionDir returns the directory holding a session's snapshots.
func (w *SnapshotWriter) SessionDir(sessionID string) string {
	return filepath.Join(w.dir, sessionID)
}

// Write stores the frames of capture seq and returns the paths written,
// empty for a disabled or missing frame.
func (w *SnapshotWriter) Write(sessionID string, seq int64, thermal *irimager.ThermalFrame, palette *irimager.PaletteFrame) (thermalPath, palettePath string, err error) {
	dir := w.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create snapshot dir: %w", err)
	}
	base := filepath.Join(dir, fmt.Sprintf("%06d", seq))

	if w.saveThermal && thermal != nil {
		thermalPath = base + ThermalSuffix
		if err := WritePNG(thermalPath, thermal.RawImage()); err != nil {
			return "", "", err
		}
	}
	if w.savePalette && palette != nil {
		palettePath = base + PaletteSuffix
		if err := WritePNG(palettePath, irimager.Scale(palette.RGBA(), w.scale)); err != nil {
			return thermalPath, "", err
		}
	}
	return thermalPath, palettePath, nil
}

// WritePNG encodes img to path through a temporary file renamed into
// place, so readers never observe a partial image.
func WritePNG(path string, img image.Image) error {
	tmp := path + partialSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(tmp), err)
	}

	if err := EncodePNG(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", filepath.Base(tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// EncodePNG writes img as PNG using fast compression.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := pngEncoder.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNGBytes returns img encoded as PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
