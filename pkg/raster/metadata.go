package raster

import (
	"encoding/json"
	"fmt"
	"os"
)

// DType is the element type of a raster payload
type DType string

// Supported element types
const (
	Uint8   DType = "uint8"
	Int8    DType = "int8"
	Uint16  DType = "uint16"
	Int16   DType = "int16"
	Uint32  DType = "uint32"
	Int32   DType = "int32"
	Float32 DType = "float32"
	Uint64  DType = "uint64"
	Int64   DType = "int64"
	Float64 DType = "float64"
)

var dtypeSizes = map[DType]int{
	Uint8:   1,
	Int8:    1,
	Uint16:  2,
	Int16:   2,
	Uint32:  4,
	Int32:   4,
	Float32: 4,
	Uint64:  8,
	Int64:   8,
	Float64: 8,
}

// Size returns the element size in bytes and whether the type is supported
func (d DType) Size() (int, bool) {
	n, ok := dtypeSizes[d]
	return n, ok
}

// Metadata describes a raster payload. The JSON form is the descriptor
// stored next to the .bin file.
type Metadata struct {
	DType     DType      `json:"dtype"`
	Count     int        `json:"count"`
	Height    int        `json:"height"`
	Width     int        `json:"width"`
	Transform [6]float64 `json:"transform"`
	CRS       string     `json:"crs,omitempty"`
}

// descriptor mirrors Metadata with a slice transform so the entry count
// can be checked on decode.
type descriptor struct {
	DType     DType     `json:"dtype"`
	Count     int       `json:"count"`
	Height    int       `json:"height"`
	Width     int       `json:"width"`
	Transform []float64 `json:"transform"`
	CRS       *string   `json:"crs"`
}

// UnmarshalJSON decodes a descriptor and rejects transforms that do not
// hold exactly six numbers.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	if len(d.Transform) != 6 {
		return configErr("transform", fmt.Sprintf("expected 6 entries, got %d", len(d.Transform)), nil)
	}

	*m = Metadata{
		DType:  d.DType,
		Count:  d.Count,
		Height: d.Height,
		Width:  d.Width,
	}
	copy(m.Transform[:], d.Transform)
	if d.CRS != nil {
		m.CRS = *d.CRS
	}
	return nil
}

// Validate checks the metadata invariants
func (m Metadata) Validate() error {
	if m.Height <= 0 {
		return configErr("height", fmt.Sprintf("must be positive, got %d", m.Height), nil)
	}
	if m.Width <= 0 {
		return configErr("width", fmt.Sprintf("must be positive, got %d", m.Width), nil)
	}
	if m.Count < 1 {
		return configErr("count", fmt.Sprintf("must be at least 1, got %d", m.Count), nil)
	}
	if _, ok := m.DType.Size(); !ok {
		return configErr("dtype", fmt.Sprintf("%q", m.DType), ErrUnsupportedDType)
	}
	return nil
}

// ElemSize returns the element size in bytes, or 0 for unsupported types
func (m Metadata) ElemSize() int {
	n, _ := m.DType.Size()
	return n
}

// TotalBytes returns the payload size implied by the metadata
func (m Metadata) TotalBytes() int64 {
	return int64(m.Count) * int64(m.Height) * int64(m.Width) * int64(m.ElemSize())
}

// ReadMetadata loads and validates a JSON descriptor
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata not found: %w", err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, configErr("descriptor", path, err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
