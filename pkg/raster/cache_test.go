package raster

import (
	"bytes"
	"sync"
	"testing"
)

func tileOfSize(n int, fill byte) *Tile {
	data := bytes.Repeat([]byte{fill}, n)
	return &Tile{Data: data, Type: Uint8, Bands: 1, Height: 1, Width: n}
}

func TestWindowCache_InitialState(t *testing.T) {
	c := NewWindowCache(1024)

	if c.Size() != 0 {
		t.Errorf("Expected size 0, got %d", c.Size())
	}
	if c.Capacity() != 1024 {
		t.Errorf("Expected capacity 1024, got %d", c.Capacity())
	}
	if c.Hits() != 0 || c.Misses() != 0 {
		t.Errorf("Expected zero hits/misses, got %d/%d", c.Hits(), c.Misses())
	}
}

func TestWindowCache_PutAndGet(t *testing.T) {
	c := NewWindowCache(4096)
	key := Window{0, 0, 10, 10}

	c.Put(key, tileOfSize(100, 7))

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if got.Data[0] != 7 || len(got.Data) != 100 {
		t.Errorf("Unexpected cached tile: len=%d first=%d", len(got.Data), got.Data[0])
	}
	if c.Hits() != 1 || c.Misses() != 0 {
		t.Errorf("Expected 1 hit and 0 misses, got %d/%d", c.Hits(), c.Misses())
	}
	if c.Size() != 100 {
		t.Errorf("Expected size 100, got %d", c.Size())
	}
}

func TestWindowCache_Miss(t *testing.T) {
	c := NewWindowCache(4096)

	if _, ok := c.Get(Window{1, 2, 3, 4}); ok {
		t.Error("Expected miss on empty cache")
	}
	if c.Misses() != 1 {
		t.Errorf("Expected 1 miss, got %d", c.Misses())
	}
}

func TestWindowCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewWindowCache(300)
	a, b, d := Window{0, 0, 1, 1}, Window{1, 0, 1, 1}, Window{2, 0, 1, 1}

	c.Put(a, tileOfSize(100, 1))
	c.Put(b, tileOfSize(100, 2))
	c.Put(d, tileOfSize(100, 3))

	// Touch a so that b becomes the eviction candidate
	if _, ok := c.Get(a); !ok {
		t.Fatal("Expected a to be cached")
	}

	c.Put(Window{3, 0, 1, 1}, tileOfSize(100, 4))

	if _, ok := c.Get(b); ok {
		t.Error("Expected b to be evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("Expected a to survive eviction")
	}
	if c.Size() != 300 {
		t.Errorf("Expected size 300, got %d", c.Size())
	}
	if c.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", c.Len())
	}
}

func TestWindowCache_DuplicatePutKeepsFirst(t *testing.T) {
	c := NewWindowCache(1000)
	key := Window{0, 0, 5, 5}

	c.Put(key, tileOfSize(100, 1))
	c.Put(key, tileOfSize(100, 2))

	got, _ := c.Get(key)
	if got.Data[0] != 1 {
		t.Errorf("Expected first entry, got fill %d", got.Data[0])
	}
	if c.Size() != 100 {
		t.Errorf("Expected size 100, got %d", c.Size())
	}
}

func TestWindowCache_OversizedNotStored(t *testing.T) {
	c := NewWindowCache(50)

	c.Put(Window{0, 0, 1, 1}, tileOfSize(100, 1))
	if c.Len() != 0 || c.Size() != 0 {
		t.Errorf("Expected empty cache, got %d entries / %d bytes", c.Len(), c.Size())
	}
}

func TestWindowCache_EmptyNotStored(t *testing.T) {
	c := NewWindowCache(64)

	c.Put(Window{0, 0, 0, 0}, tileOfSize(0, 0))
	if c.Len() != 0 {
		t.Errorf("Expected empty tile to be skipped, got %d entries", c.Len())
	}
}

func TestWindowCache_Clear(t *testing.T) {
	c := NewWindowCache(1000)
	c.Put(Window{0, 0, 1, 1}, tileOfSize(10, 1))
	c.Get(Window{0, 0, 1, 1})

	c.Clear()

	if c.Size() != 0 || c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d bytes", c.Size())
	}
	if c.Hits() != 1 {
		t.Errorf("Expected hit counter to survive Clear, got %d", c.Hits())
	}
}

func TestWindowCache_Concurrent(t *testing.T) {
	c := NewWindowCache(10_000)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := Window{X: i % 20, Y: g}
				if _, ok := c.Get(key); !ok {
					c.Put(key, tileOfSize(50, byte(i)))
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > c.Capacity() {
		t.Errorf("Cache exceeded capacity: %d > %d", c.Size(), c.Capacity())
	}
	if c.Hits()+c.Misses() != 8*200 {
		t.Errorf("Expected %d lookups, got %d", 8*200, c.Hits()+c.Misses())
	}
}

func TestCachedStore_CopyIndependence(t *testing.T) {
	m := newTestStore(t)
	cs := NewCachedStore(m, NewWindowCache(DefaultCacheBytes))

	first := cs.WindowCopy(5, 5, 10, 10)
	want := append([]byte(nil), first.Data...)
	for i := range first.Data {
		first.Data[i] = 0
	}

	second := cs.WindowCopy(5, 5, 10, 10)
	if !bytes.Equal(second.Data, want) {
		t.Error("Mutating a returned copy corrupted the cache")
	}
	if cs.Cache().Hits() != 1 || cs.Cache().Misses() != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d/%d", cs.Cache().Hits(), cs.Cache().Misses())
	}

	second.Data[0] ^= 0xFF
	third := cs.WindowCopy(5, 5, 10, 10)
	if !bytes.Equal(third.Data, want) {
		t.Error("Mutating a cache hit corrupted the cache")
	}
}

func TestCachedStore_OffRasterWindowsStayBounded(t *testing.T) {
	cs := NewCachedStore(newTestStore(t), NewWindowCache(64))

	for i := 0; i < 1000; i++ {
		if tile := cs.WindowCopy(1000+i, 0, 5, 5); !tile.Empty() {
			t.Fatalf("Expected empty tile for off-raster window %d", 1000+i)
		}
	}
	if cs.Cache().Len() != 0 || cs.Cache().Size() != 0 {
		t.Errorf("Expected no cached entries, got %d entries / %d bytes", cs.Cache().Len(), cs.Cache().Size())
	}

	// 3 bands of 4x4 uint8 is 48 bytes, inside the capacity
	cs.WindowCopy(0, 0, 4, 4)
	if cs.Cache().Len() != 1 {
		t.Errorf("Expected in-raster window to be cached, got %d entries", cs.Cache().Len())
	}
}

func TestCachedStore_SatisfiesStore(t *testing.T) {
	var s Store = NewCachedStore(newTestStore(t), NewWindowCache(1024))

	if !s.IsValidWindow(0, 0, 10, 10) {
		t.Error("Expected delegated IsValidWindow to accept window")
	}
	if _, h, w := s.WindowView(195, 95, 20, 20).Shape(); h != 5 || w != 5 {
		t.Errorf("Expected delegated view 5x5, got %dx%d", w, h)
	}
}
