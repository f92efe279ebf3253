package raster

import (
	"encoding/binary"
	"math"
)

// Window is a pixel rectangle
type Window struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// In reports whether the window lies strictly inside a raster of the
// given size.
func (w Window) In(width, height int) bool {
	return w.X >= 0 && w.Y >= 0 &&
		w.Width > 0 && w.Height > 0 &&
		w.Width <= width-w.X &&
		w.Height <= height-w.Y
}

// Element is implemented by View and Tile
type Element interface {
	DType() DType
	At(band, y, x int) []byte
}

// View is a window into a store's buffer. It is only valid while the
// store is.
type View struct {
	data  []byte
	dtype DType

	Bands  int
	Height int
	Width  int

	elemSize   int
	rowStride  int
	bandStride int
}

// DType returns the element type
func (v View) DType() DType { return v.dtype }

// Shape returns (bands, height, width)
func (v View) Shape() (int, int, int) { return v.Bands, v.Height, v.Width }

// Empty reports whether the view covers no pixels
func (v View) Empty() bool { return v.Height == 0 || v.Width == 0 }

// Row returns the bytes of one row of one band without copying
func (v View) Row(band, y int) []byte {
	off := band*v.bandStride + y*v.rowStride
	n := v.Width * v.elemSize
	return v.data[off : off+n : off+n]
}

// At returns the bytes of a single element
func (v View) At(band, y, x int) []byte {
	off := band*v.bandStride + y*v.rowStride + x*v.elemSize
	return v.data[off : off+v.elemSize : off+v.elemSize]
}

// Copy gathers the view into a contiguous band-sequential tile
func (v View) Copy() *Tile {
	t := &Tile{
		Type:   v.dtype,
		Bands:  v.Bands,
		Height: v.Height,
		Width:  v.Width,
		Data:   make([]byte, v.Bands*v.Height*v.Width*v.elemSize),
	}
	if v.Empty() {
		return t
	}

	i := 0
	for b := 0; b < v.Bands; b++ {
		for y := 0; y < v.Height; y++ {
			i += copy(t.Data[i:], v.Row(b, y))
		}
	}
	return t
}

// Tile is an owned band-sequential window
type Tile struct {
	Data   []byte
	Type   DType
	Bands  int
	Height int
	Width  int
}

// DType returns the element type
func (t *Tile) DType() DType { return t.Type }

// Shape returns (bands, height, width)
func (t *Tile) Shape() (int, int, int) { return t.Bands, t.Height, t.Width }

// Empty reports whether the tile covers no pixels
func (t *Tile) Empty() bool { return t.Height == 0 || t.Width == 0 }

// Row returns one row of one band
func (t *Tile) Row(band, y int) []byte {
	n := t.rowBytes()
	off := band*t.Height*n + y*n
	return t.Data[off : off+n : off+n]
}

// At returns the bytes of a single element
func (t *Tile) At(band, y, x int) []byte {
	es, _ := t.Type.Size()
	off := (band*t.Height+y)*t.rowBytes() + x*es
	return t.Data[off : off+es : off+es]
}

// Clone returns a deep copy
func (t *Tile) Clone() *Tile {
	c := *t
	c.Data = make([]byte, len(t.Data))
	copy(c.Data, t.Data)
	return &c
}

func (t *Tile) rowBytes() int {
	es, _ := t.Type.Size()
	return t.Width * es
}

// Number is the set of Go types an element can be decoded into
type Number interface {
	~int | ~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 |
		~float32 | ~uint64 | ~int64 | ~float64
}

// Value decodes one little-endian element and converts it to T
func Value[T Number](e Element, band, y, x int) T {
	b := e.At(band, y, x)
	switch e.DType() {
	case Uint8:
		return T(b[0])
	case Int8:
		return T(int8(b[0]))
	case Uint16:
		return T(binary.LittleEndian.Uint16(b))
	case Int16:
		return T(int16(binary.LittleEndian.Uint16(b)))
	case Uint32:
		return T(binary.LittleEndian.Uint32(b))
	case Int32:
		return T(int32(binary.LittleEndian.Uint32(b)))
	case Float32:
		return T(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Uint64:
		return T(binary.LittleEndian.Uint64(b))
	case Int64:
		return T(int64(binary.LittleEndian.Uint64(b)))
	case Float64:
		return T(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	}
	return 0
}
