package mem

import (
	"math"
	"unsafe"
)

const (
	heapNullPtr uint32 = math.MaxUint32

	heapAlign       = 8
	blockHeaderSize = uint32(unsafe.Sizeof(blockHeader{}))
)

// AllocTerm ...
type AllocTerm uint32

const (
	// AllocLongTerm places blocks from the low end of the region.
	AllocLongTerm AllocTerm = 0
	// AllocShortTerm places blocks from the high end of the region.
	AllocShortTerm AllocTerm = 1
)

const (
	blockStateFree uint32 = 0
	blockStateUsed uint32 = 1
)

// Heap hands out variable-sized blocks carved from a single region.
// Block addresses are uint32 offsets into that region.
type Heap struct {
	data unsafe.Pointer
	size uint32

	region []byte
	mapped bool

	stats HeapStats
}

// HeapStats ...
type HeapStats struct {
	TotalSize     uint64
	AllocatedSize uint64
}

// blockHeader precedes every block in the region. Blocks form a doubly
// linked list in address order.
type blockHeader struct {
	prev  uint32
	next  uint32
	size  uint32 // usable bytes, excluding the header
	state uint32
}

// NewHeap ...
func NewHeap(buf []byte) *Heap {
	size := len(buf)
	if size < int(blockHeaderSize)+heapAlign {
		panic("heap buffer too small")
	}
	if size%heapAlign != 0 {
		panic("heap buffer size must be a multiple of the heap granularity")
	}

	h := &Heap{
		data:   unsafe.Pointer(&buf[0]),
		size:   uint32(size),
		region: buf,
	}

	first := h.headerAt(0)
	first.prev = heapNullPtr
	first.next = heapNullPtr
	first.size = h.size - blockHeaderSize
	first.state = blockStateFree

	h.stats.TotalSize = uint64(size)
	return h
}

// AllocHeap creates a heap over a freshly mapped region of the given size.
func AllocHeap(size int) (*Heap, error) {
	if size <= 0 {
		panic("heap size must be positive")
	}
	mask := heapAlign - 1
	size = (size + mask) &^ mask

	buf, err := mapRegion(size)
	if err != nil {
		return nil, err
	}

	h := NewHeap(buf)
	h.mapped = true
	return h, nil
}

// Close releases the backing region if the heap mapped it itself.
func (h *Heap) Close() error {
	if !h.mapped {
		return nil
	}
	h.mapped = false
	return unmapRegion(h.region)
}

func (h *Heap) headerAt(addr uint32) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(h.data) + uintptr(addr)))
}

// ToRealAddr ...
func (h *Heap) ToRealAddr(addr uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(h.data) + uintptr(addr))
}

// RecommendSize rounds a minimum requirement up to the heap granularity.
func (h *Heap) RecommendSize(min uint32) uint32 {
	return (min + heapAlign - 1) &^ (heapAlign - 1)
}

// Stats ...
func (h *Heap) Stats() HeapStats {
	return h.stats
}

// AllocBlock returns the offset of a block with at least size usable
// bytes, or false when no free block can hold the request.
func (h *Heap) AllocBlock(size uint32, term AllocTerm) (uint32, bool) {
	assertTrue(size > 0)
	need := h.RecommendSize(size)

	found := heapNullPtr
	for addr := uint32(0); addr != heapNullPtr; {
		header := h.headerAt(addr)
		if header.state == blockStateFree && header.size >= need {
			found = addr
			if term == AllocLongTerm {
				break
			}
		}
		addr = header.next
	}
	if found == heapNullPtr {
		return 0, false
	}

	header := h.headerAt(found)
	if header.size >= need+blockHeaderSize+heapAlign {
		if term == AllocLongTerm {
			found = h.splitBlockFront(found, need)
		} else {
			found = h.splitBlockBack(found, need)
		}
		header = h.headerAt(found)
	}

	header.state = blockStateUsed
	h.stats.AllocatedSize += uint64(header.size)
	return found + blockHeaderSize, true
}

// splitBlockFront carves need bytes from the low end of a free block,
// leaving the remainder as a free block after it.
func (h *Heap) splitBlockFront(addr uint32, need uint32) uint32 {
	header := h.headerAt(addr)

	restAddr := addr + blockHeaderSize + need
	rest := h.headerAt(restAddr)
	rest.prev = addr
	rest.next = header.next
	rest.size = header.size - need - blockHeaderSize
	rest.state = blockStateFree

	if header.next != heapNullPtr {
		h.headerAt(header.next).prev = restAddr
	}
	header.next = restAddr
	header.size = need

	return addr
}

// splitBlockBack carves need bytes from the high end of a free block,
// leaving the remainder as a free block before it.
func (h *Heap) splitBlockBack(addr uint32, need uint32) uint32 {
	header := h.headerAt(addr)

	newAddr := addr + blockHeaderSize + header.size - need - blockHeaderSize
	newHeader := h.headerAt(newAddr)
	newHeader.prev = addr
	newHeader.next = header.next
	newHeader.size = need
	newHeader.state = blockStateFree

	if header.next != heapNullPtr {
		h.headerAt(header.next).prev = newAddr
	}
	header.next = newAddr
	header.size = header.size - need - blockHeaderSize

	return newAddr
}

// FreeBlock returns a block to the heap, coalescing it with free
// neighbors. The offset must be one previously returned by AllocBlock.
func (h *Heap) FreeBlock(addr uint32) {
	assertTrue(addr >= blockHeaderSize)
	headerAddr := addr - blockHeaderSize
	assertTrue(headerAddr < h.size)

	header := h.headerAt(headerAddr)
	assertTrue(header.state == blockStateUsed)

	header.state = blockStateFree
	h.stats.AllocatedSize -= uint64(header.size)

	if header.next != heapNullPtr {
		next := h.headerAt(header.next)
		if next.state == blockStateFree {
			header.size += blockHeaderSize + next.size
			header.next = next.next
			if next.next != heapNullPtr {
				h.headerAt(next.next).prev = headerAddr
			}
		}
	}

	if header.prev != heapNullPtr {
		prev := h.headerAt(header.prev)
		if prev.state == blockStateFree {
			prev.size += blockHeaderSize + header.size
			prev.next = header.next
			if header.next != heapNullPtr {
				h.headerAt(header.next).prev = header.prev
			}
		}
	}
}
