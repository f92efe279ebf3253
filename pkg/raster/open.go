package raster

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Backend selects how a payload is brought into memory
type Backend int

const (
	// BackendMemory reads the payload into a heap buffer
	BackendMemory Backend = iota
	// BackendMmap maps the payload read-only
	BackendMmap
)

func (b Backend) String() string {
	switch b {
	case BackendMemory:
		return "memory"
	case BackendMmap:
		return "mmap"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses "memory" or "mmap"
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory", "mem":
		return BackendMemory, nil
	case "mmap", "mapped":
		return BackendMmap, nil
	}
	return 0, fmt.Errorf("unknown backend: %s", s)
}

// Option configures Open
type Option func(*openOptions)

type openOptions struct {
	backend Backend
}

// WithBackend selects the payload backend
func WithBackend(b Backend) Option {
	return func(o *openOptions) { o.backend = b }
}

// Dataset is an opened descriptor/payload pair
type Dataset struct {
	Store
	Base    string
	Backend Backend

	closeFn func() error
}

// Close releases the payload. Views taken from a mapped dataset must not
// be used afterwards.
func (d *Dataset) Close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// MetadataPath returns the descriptor path for a dataset base name
func MetadataPath(base string) string { return base + ".json" }

// PayloadPath returns the payload path for a dataset base name
func PayloadPath(base string) string { return base + ".bin" }

// Open loads <base>.json and <base>.bin
func Open(base string, opts ...Option) (*Dataset, error) {
	o := openOptions{backend: BackendMemory}
	for _, opt := range opts {
		opt(&o)
	}

	meta, err := ReadMetadata(MetadataPath(base))
	if err != nil {
		return nil, err
	}

	binPath := PayloadPath(base)
	st, err := os.Stat(binPath)
	if err != nil {
		return nil, fmt.Errorf("binary data not found: %w", err)
	}
	if st.Size() != meta.TotalBytes() {
		return nil, configErr("buffer", fmt.Sprintf("%s is %d bytes, metadata requires %d", binPath, st.Size(), meta.TotalBytes()), ErrSizeMismatch)
	}

	switch o.backend {
	case BackendMmap:
		m, err := OpenMapped(meta, binPath)
		if err != nil {
			return nil, err
		}
		return &Dataset{Store: m, Base: base, Backend: BackendMmap, closeFn: m.Close}, nil
	default:
		buf, err := os.ReadFile(binPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", binPath, err)
		}
		m, err := NewMemory(meta, buf)
		if err != nil {
			return nil, err
		}
		return &Dataset{Store: m, Base: base, Backend: BackendMemory}, nil
	}
}

// Mapped is a Store over a read-only memory map of a payload file. All
// windowing is delegated to an embedded Memory over the mapped bytes.
type Mapped struct {
	*Memory

	once     sync.Once
	unmap    func() error
	closeErr error
}

// OpenMapped maps path and checks it against meta
func OpenMapped(meta Metadata, path string) (*Mapped, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	data, unmap, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}

	mem, err := NewMemory(meta, data)
	if err != nil {
		unmap()
		return nil, err
	}
	return &Mapped{Memory: mem, unmap: unmap}, nil
}

// Close unmaps the payload. It is safe to call more than once.
func (m *Mapped) Close() error {
	m.once.Do(func() {
		m.closeErr = m.unmap()
	})
	return m.closeErr
}
