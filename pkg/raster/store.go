// Package raster provides bounds-safe windowed access to band-sequential
// raster payloads.
//
// A payload holds all rows of band 0, then all rows of band 1 and so on,
// each row being width elements of the metadata's element type. Stores are
// read-only; any number of goroutines may read from one concurrently.
package raster

import "fmt"

// Store is the windowed accessor contract. Memory and Mapped implement it
// with identical clamping so one can stand in for the other.
type Store interface {
	Metadata() Metadata
	Width() int
	Height() int
	Bands() int

	// IsValidWindow is the strict bounds predicate. It never clamps.
	IsValidWindow(x, y, width, height int) bool
	// WindowView returns a clamped zero-copy view.
	WindowView(x, y, width, height int) View
	// WindowCopy returns a clamped copy the caller owns.
	WindowCopy(x, y, width, height int) *Tile
}

// Memory is a Store over an in-memory buffer. The buffer is borrowed, not
// copied, and must not be modified while the store is in use.
type Memory struct {
	meta       Metadata
	buf        []byte
	elemSize   int
	rowStride  int
	bandStride int
}

var _ Store = (*Memory)(nil)

// NewMemory validates meta and checks that buf holds exactly
// bands*height*width*elemsize bytes.
func NewMemory(meta Metadata, buf []byte) (*Memory, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	want := meta.TotalBytes()
	if int64(len(buf)) != want {
		return nil, configErr("buffer", fmt.Sprintf("got %d bytes, metadata requires %d", len(buf), want), ErrSizeMismatch)
	}

	elem := meta.ElemSize()
	return &Memory{
		meta:       meta,
		buf:        buf,
		elemSize:   elem,
		rowStride:  meta.Width * elem,
		bandStride: meta.Height * meta.Width * elem,
	}, nil
}

// Metadata returns the store's metadata
func (m *Memory) Metadata() Metadata { return m.meta }

// Width returns the raster width in pixels
func (m *Memory) Width() int { return m.meta.Width }

// Height returns the raster height in pixels
func (m *Memory) Height() int { return m.meta.Height }

// Bands returns the band count
func (m *Memory) Bands() int { return m.meta.Count }

// DType returns the element type
func (m *Memory) DType() DType { return m.meta.DType }

// Shape returns (bands, height, width)
func (m *Memory) Shape() (int, int, int) {
	return m.meta.Count, m.meta.Height, m.meta.Width
}

// IsValidWindow reports whether the window lies fully inside the raster.
// The comparisons are arranged so that large operands cannot overflow.
func (m *Memory) IsValidWindow(x, y, width, height int) bool {
	return x >= 0 && y >= 0 &&
		width > 0 && height > 0 &&
		width <= m.meta.Width-x &&
		height <= m.meta.Height-y
}

// WindowView clamps the window to the raster and returns a view sharing
// the backing buffer. x and y are raised to 0 without shrinking the
// requested size; width and height are then cut at the raster edge. A
// window with nothing left yields an empty view that keeps the band count.
func (m *Memory) WindowView(x, y, width, height int) View {
	x = max(0, x)
	y = max(0, y)
	width = min(width, m.meta.Width-x)
	height = min(height, m.meta.Height-y)

	v := View{
		dtype:      m.meta.DType,
		Bands:      m.meta.Count,
		elemSize:   m.elemSize,
		rowStride:  m.rowStride,
		bandStride: m.bandStride,
	}
	if width <= 0 || height <= 0 {
		return v
	}

	start := y*m.rowStride + x*m.elemSize
	end := (m.meta.Count-1)*m.bandStride + (y+height-1)*m.rowStride + (x+width)*m.elemSize

	v.data = m.buf[start:end:end]
	v.Height = height
	v.Width = width
	return v
}

// WindowCopy is WindowView followed by a copy into fresh storage
func (m *Memory) WindowCopy(x, y, width, height int) *Tile {
	return m.WindowView(x, y, width, height).Copy()
}
