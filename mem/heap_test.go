package mem

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestNewHeap(t *testing.T) {
	h := NewHeap(make([]byte, 1024))

	assert.Equal(t, uint32(1024), h.size)
	assert.Equal(t, HeapStats{TotalSize: 1024, AllocatedSize: 0}, h.Stats())

	first := h.headerAt(0)
	assert.Equal(t, heapNullPtr, first.prev)
	assert.Equal(t, heapNullPtr, first.next)
	assert.Equal(t, uint32(1008), first.size)
	assert.Equal(t, blockStateFree, first.state)
}

func TestNewHeapInvalidBuffer(t *testing.T) {
	assert.Panics(t, func() {
		NewHeap(make([]byte, 8))
	})
	assert.Panics(t, func() {
		NewHeap(make([]byte, 1023))
	})
}

func TestHeapRecommendSize(t *testing.T) {
	table := []struct {
		name     string
		min      uint32
		expected uint32
	}{
		{
			name:     "already-granular",
			min:      8,
			expected: 8,
		},
		{
			name:     "round-up-small",
			min:      1,
			expected: 8,
		},
		{
			name:     "round-up",
			min:      9,
			expected: 16,
		},
		{
			name:     "pool-space",
			min:      136,
			expected: 136,
		},
		{
			name:     "pool-space-round-up",
			min:      137,
			expected: 144,
		},
	}

	for _, e := range table {
		t.Run(e.name, func(t *testing.T) {
			h := NewHeap(make([]byte, 64))
			assert.Equal(t, e.expected, h.RecommendSize(e.min))
		})
	}
}

func TestHeapAllocBlockLongTerm(t *testing.T) {
	h := NewHeap(make([]byte, 1024))

	a, ok := h.AllocBlock(40, AllocLongTerm)
	assert.True(t, ok)
	assert.Equal(t, uint32(16), a)
	assert.Equal(t, uint32(40), h.headerAt(0).size)
	assert.Equal(t, blockStateUsed, h.headerAt(0).state)

	rest := h.headerAt(56)
	assert.Equal(t, uint32(952), rest.size)
	assert.Equal(t, blockStateFree, rest.state)
	assert.Equal(t, uint32(0), rest.prev)
	assert.Equal(t, heapNullPtr, rest.next)

	b, ok := h.AllocBlock(40, AllocLongTerm)
	assert.True(t, ok)
	assert.Equal(t, uint32(72), b)

	assert.Equal(t, uint64(80), h.Stats().AllocatedSize)
}

func TestHeapAllocBlockShortTerm(t *testing.T) {
	h := NewHeap(make([]byte, 1024))

	a, ok := h.AllocBlock(40, AllocShortTerm)
	assert.True(t, ok)
	assert.Equal(t, uint32(984), a)

	first := h.headerAt(0)
	assert.Equal(t, uint32(952), first.size)
	assert.Equal(t, blockStateFree, first.state)
	assert.Equal(t, uint32(968), first.next)

	block := h.headerAt(968)
	assert.Equal(t, uint32(40), block.size)
	assert.Equal(t, blockStateUsed, block.state)
	assert.Equal(t, uint32(0), block.prev)
	assert.Equal(t, heapNullPtr, block.next)
}

func TestHeapAllocBlockWholeWhenRemainderTooSmall(t *testing.T) {
	h := NewHeap(make([]byte, 64))

	a, ok := h.AllocBlock(40, AllocLongTerm)
	assert.True(t, ok)
	assert.Equal(t, uint32(16), a)
	assert.Equal(t, uint32(48), h.headerAt(0).size)
	assert.Equal(t, heapNullPtr, h.headerAt(0).next)
}

func TestHeapAllocBlockExhaustion(t *testing.T) {
	h := NewHeap(make([]byte, 64))

	a, ok := h.AllocBlock(48, AllocLongTerm)
	assert.True(t, ok)
	assert.Equal(t, uint32(16), a)

	_, ok = h.AllocBlock(8, AllocLongTerm)
	assert.False(t, ok)
	assert.Equal(t, uint64(48), h.Stats().AllocatedSize)

	h.FreeBlock(a)

	_, ok = h.AllocBlock(1024, AllocLongTerm)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), h.Stats().AllocatedSize)
}

func TestHeapFreeBlockCoalesce(t *testing.T) {
	h := NewHeap(make([]byte, 1024))

	a, _ := h.AllocBlock(40, AllocLongTerm)
	b, _ := h.AllocBlock(40, AllocLongTerm)
	c, _ := h.AllocBlock(40, AllocLongTerm)
	assert.Equal(t, uint32(16), a)
	assert.Equal(t, uint32(72), b)
	assert.Equal(t, uint32(128), c)

	h.FreeBlock(b)
	assert.Equal(t, blockStateFree, h.headerAt(56).state)

	h.FreeBlock(a)
	merged := h.headerAt(0)
	assert.Equal(t, uint32(96), merged.size)
	assert.Equal(t, uint32(112), merged.next)

	h.FreeBlock(c)
	merged = h.headerAt(0)
	assert.Equal(t, uint32(1008), merged.size)
	assert.Equal(t, heapNullPtr, merged.next)
	assert.Equal(t, uint64(0), h.Stats().AllocatedSize)

	// the region is whole again
	d, ok := h.AllocBlock(1008, AllocLongTerm)
	assert.True(t, ok)
	assert.Equal(t, uint32(16), d)
}

func TestHeapFreeBlockReuse(t *testing.T) {
	h := NewHeap(make([]byte, 1024))

	a, _ := h.AllocBlock(40, AllocLongTerm)
	b, _ := h.AllocBlock(40, AllocLongTerm)

	h.FreeBlock(a)

	c, ok := h.AllocBlock(40, AllocLongTerm)
	assert.True(t, ok)
	assert.Equal(t, a, c)

	h.FreeBlock(b)
	h.FreeBlock(c)
}

func TestHeapFreeBlockDoubleFree(t *testing.T) {
	h := NewHeap(make([]byte, 1024))

	a, _ := h.AllocBlock(40, AllocLongTerm)
	b, _ := h.AllocBlock(40, AllocLongTerm)
	_ = b

	h.FreeBlock(a)
	assert.Panics(t, func() {
		h.FreeBlock(a)
	})
}

func TestAllocHeap(t *testing.T) {
	h, err := AllocHeap(1 << 16)
	assert.Nil(t, err)
	assert.Equal(t, uint64(1<<16), h.Stats().TotalSize)

	a, ok := h.AllocBlock(100, AllocLongTerm)
	assert.True(t, ok)
	assert.NotEqual(t, uint32(0), a)

	h.FreeBlock(a)
	assert.Nil(t, h.Close())
}
