package mem

import (
	"math/bits"
	"unsafe"
)

// trackingUnitSize is the size of one bitmap word tracking chunk usage.
const trackingUnitSize = uint32(8)

const chunksPerTrackWord = 64

// poolState describes one pool: a storage block subdivided into
// equal-size chunks, with usage bits at the front of the block. Records
// for grown pools live inside the bootstrap pool's storage and are
// addressed by heap offset; the layout must stay exactly the size of
// one chunk class.
type poolState struct {
	chunkSize    uint32
	chunksTotal  uint32
	chunksFree   uint32
	storageStart uint32
	storageEnd   uint32
	chunksStart  uint32
	trackWords   uint32
	next         uint32
}

const poolStateSize = uint32(unsafe.Sizeof(poolState{}))

func (p *poolState) trackWordAt(h *Heap, index uint32) *uint64 {
	return (*uint64)(h.ToRealAddr(p.storageStart + index*trackingUnitSize))
}

// poolInit lays a pool over a storage block: bitmap words first, then
// as many chunks as the remaining bytes can hold.
func poolInit(h *Heap, p *poolState, chunkSize uint32, storage uint32, storageSize uint32) {
	words := uint32(1)
	total := (storageSize - words*trackingUnitSize) / chunkSize
	for total > words*chunksPerTrackWord {
		words++
		total = (storageSize - words*trackingUnitSize) / chunkSize
	}
	assertTrue(total > 0)

	p.chunkSize = chunkSize
	p.chunksTotal = total
	p.chunksFree = total
	p.storageStart = storage
	p.storageEnd = storage + storageSize
	p.chunksStart = storage + words*trackingUnitSize
	p.trackWords = words
	p.next = heapNullPtr

	for i := uint32(0); i < words; i++ {
		*p.trackWordAt(h, i) = 0
	}

	// Bits past chunksTotal must never be handed out.
	tail := total % chunksPerTrackWord
	if tail != 0 {
		*p.trackWordAt(h, words-1) = ^uint64(0) << tail
	}
}

// poolAllocChunk takes the first free chunk. The caller guarantees the
// pool has at least one free chunk.
func poolAllocChunk(h *Heap, p *poolState) uint32 {
	assertTrue(p.chunksFree > 0)

	for i := uint32(0); i < p.trackWords; i++ {
		word := p.trackWordAt(h, i)
		if *word == ^uint64(0) {
			continue
		}
		bit := uint32(bits.TrailingZeros64(^*word))
		*word |= 1 << bit

		p.chunksFree--
		return p.chunksStart + (i*chunksPerTrackWord+bit)*p.chunkSize
	}

	panic("pool free count does not match its tracking bits")
}

func poolFreeChunk(h *Heap, p *poolState, chunk uint32) {
	assertTrue(chunk >= p.chunksStart)
	index := (chunk - p.chunksStart) / p.chunkSize
	assertTrue(index < p.chunksTotal)

	word := p.trackWordAt(h, index/chunksPerTrackWord)
	mask := uint64(1) << (index % chunksPerTrackWord)
	assertTrue(*word&mask != 0)

	*word &^= mask
	p.chunksFree++
}
