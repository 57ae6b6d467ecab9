package mem

// bootstrapRecordCount is the number of pool records the bootstrap pool
// is sized for. It is never regrown, so this caps the number of
// simultaneously live pools across all classes.
const bootstrapRecordCount = 4

// growChunkCount is the number of chunks a class gains per new pool,
// amortizing the cost of the underlying block allocation.
const growChunkCount = 8

// Manager serves fixed-size chunks segregated by class. Each class owns
// a list of pools; a pool is created when its class runs out of free
// chunks and destroyed the moment it becomes fully free. The records
// describing pools are themselves chunks of the bootstrap pool.
type Manager struct {
	heap *Heap

	pools     [ClassCount]uint32
	freeCount [ClassCount]uint32

	headerPool poolState
}

// NewManager ...
func NewManager(h *Heap) *Manager {
	m := &Manager{heap: h}
	for class := range m.pools {
		m.pools[class] = heapNullPtr
		m.freeCount[class] = 0
	}

	// The record layout must line up with one chunk class exactly,
	// otherwise the bootstrap pool cannot host records.
	class, ok := exactSizeClass(poolStateSize)
	if !ok {
		panic("no chunk class matches the pool record size")
	}

	spaceSize := h.RecommendSize(bootstrapRecordCount*poolStateSize + trackingUnitSize)
	space, ok := h.AllocBlock(spaceSize, AllocLongTerm)
	if !ok {
		panic("heap cannot hold the bootstrap pool")
	}

	poolInit(h, &m.headerPool, ClassSize(class), space, spaceSize)
	return m
}

func (m *Manager) recordAt(addr uint32) *poolState {
	return (*poolState)(m.heap.ToRealAddr(addr))
}

// Allocate returns the offset of a free chunk of the class's size, or
// false when neither a pool record nor a storage block can be obtained.
func (m *Manager) Allocate(class ChunkClass) (uint32, bool) {
	chunkSize := ClassSize(class)

	if m.freeCount[class] == 0 {
		if m.headerPool.chunksFree == 0 {
			return 0, false
		}
		recordAddr := poolAllocChunk(m.heap, &m.headerPool)

		spaceSize := m.heap.RecommendSize(growChunkCount*chunkSize + trackingUnitSize)
		space, ok := m.heap.AllocBlock(spaceSize, AllocLongTerm)
		if !ok {
			poolFreeChunk(m.heap, &m.headerPool, recordAddr)
			return 0, false
		}

		record := m.recordAt(recordAddr)
		poolInit(m.heap, record, chunkSize, space, spaceSize)

		record.next = m.pools[class]
		m.pools[class] = recordAddr
		m.freeCount[class] += record.chunksFree
	}

	// At least one pool of the class now has a free chunk.
	addr := m.pools[class]
	record := m.recordAt(addr)
	for record.chunksFree == 0 {
		addr = record.next
		assertTrue(addr != heapNullPtr)
		record = m.recordAt(addr)
	}

	m.freeCount[class]--
	return poolAllocChunk(m.heap, record), true
}

// Free returns a chunk previously allocated for the same class. A chunk
// not owned by any pool of the class means the caller misused the
// manager, which is fatal.
func (m *Manager) Free(class ChunkClass, chunk uint32) {
	addr := m.pools[class]
	prev := heapNullPtr
	for {
		assertTrue(addr != heapNullPtr)
		record := m.recordAt(addr)
		if record.chunksStart <= chunk && chunk <= record.storageEnd {
			break
		}
		prev = addr
		addr = record.next
	}
	record := m.recordAt(addr)

	poolFreeChunk(m.heap, record, chunk)
	m.freeCount[class]++

	if record.chunksFree == record.chunksTotal {
		if prev != heapNullPtr {
			m.recordAt(prev).next = record.next
		} else {
			m.pools[class] = record.next
		}
		m.freeCount[class] -= record.chunksTotal

		m.heap.FreeBlock(record.storageStart)
		poolFreeChunk(m.heap, &m.headerPool, addr)
	}
}

// FreeChunkCount ...
func (m *Manager) FreeChunkCount(class ChunkClass) uint32 {
	return m.freeCount[class]
}

// LivePoolCount ...
func (m *Manager) LivePoolCount(class ChunkClass) int {
	count := 0
	for addr := m.pools[class]; addr != heapNullPtr; addr = m.recordAt(addr).next {
		count++
	}
	return count
}

// HeaderRecordsFree ...
func (m *Manager) HeaderRecordsFree() uint32 {
	return m.headerPool.chunksFree
}

func assertTrue(b bool) {
	if !b {
		panic("must be true")
	}
}
