// Package export writes extracted windows to disk as PNG images, raw BSQ
// payloads and world files.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiesman99/geoslice/pkg/geo"
	"github.com/kiesman99/geoslice/pkg/raster"
)

// ErrNotImage is returned when a tile cannot be rendered as PNG
var ErrNotImage = errors.New("tile is not an 8-bit gray, RGB or RGBA image")

// CanEncodePNG reports whether EncodePNG accepts t
func CanEncodePNG(t *raster.Tile) bool {
	if t == nil || t.Type != raster.Uint8 {
		return false
	}
	switch t.Bands {
	case 1, 3, 4:
		return true
	}
	return false
}

// EncodePNG renders a uint8 tile. One band is written as grayscale, three
// bands as RGB with full opacity, four bands as RGBA.
func EncodePNG(w io.Writer, t *raster.Tile) error {
	if !CanEncodePNG(t) {
		if t == nil {
			return ErrNotImage
		}
		return fmt.Errorf("%w: %s with %d bands", ErrNotImage, t.Type, t.Bands)
	}
	if t.Empty() {
		return fmt.Errorf("%w: empty tile", ErrNotImage)
	}

	rect := image.Rect(0, 0, t.Width, t.Height)
	if t.Bands == 1 {
		img := image.NewGray(rect)
		for y := 0; y < t.Height; y++ {
			copy(img.Pix[y*img.Stride:], t.Row(0, y))
		}
		return png.Encode(w, img)
	}

	// Interleave the band planes
	img := image.NewNRGBA(rect)
	for y := 0; y < t.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for b := 0; b < 4; b++ {
			if b == 3 && t.Bands == 3 {
				for x := 0; x < t.Width; x++ {
					row[x*4+3] = 255
				}
				continue
			}
			src := t.Row(b, y)
			for x := 0; x < t.Width; x++ {
				row[x*4+b] = src[x]
			}
		}
	}
	return png.Encode(w, img)
}

// WriteRaw writes the tile's band-sequential bytes
func WriteRaw(w io.Writer, t *raster.Tile) error {
	_, err := w.Write(t.Data)
	return err
}

// WorldFile returns the six-line world file for a window: pixel size x,
// two zero rotation terms, negative pixel size y, then the projected
// coordinates of the window's upper-left corner.
func WorldFile(t *geo.Transform, win raster.Window) []byte {
	minx := t.OriginX + float64(win.X)*t.PixelSizeX
	maxy := t.OriginY - float64(win.Y)*t.PixelSizeY

	var b strings.Builder
	for _, v := range []float64{t.PixelSizeX, 0, 0, -t.PixelSizeY, minx, maxy} {
		fmt.Fprintf(&b, "%24.10f\n", v)
	}
	return []byte(b.String())
}

// WorldFileName derives the sidecar name for an image path. The extension
// becomes its first and last letters followed by "w", so out.png gets
// out.pgw and out.bin gets out.bnw.
func WorldFileName(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	name := strings.TrimPrefix(ext, ".")
	if len(name) < 2 {
		return base + ".wld"
	}
	return base + "." + name[:1] + name[len(name)-1:] + "w"
}

// WriteWorldFile writes the world file for the image at imagePath and
// returns the sidecar's path
func WriteWorldFile(imagePath string, t *geo.Transform, win raster.Window) (string, error) {
	if imagePath == "" {
		return "", errors.New("can't write a world file when writing to stdout")
	}
	name := WorldFileName(imagePath)
	if err := os.WriteFile(name, WorldFile(t, win), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// WriteTile writes t to path, as PNG when the path ends in .png and as raw
// bytes otherwise. An empty path writes to stdout. Nothing is created when
// a PNG is requested for a tile that cannot be encoded.
func WriteTile(path string, t *raster.Tile) (err error) {
	asPNG := strings.EqualFold(filepath.Ext(path), ".png")
	if asPNG && (!CanEncodePNG(t) || t.Empty()) {
		return EncodePNG(io.Discard, t)
	}

	write := WriteRaw
	if asPNG {
		write = EncodePNG
	}
	if path == "" {
		return write(os.Stdout, t)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, t)
}
