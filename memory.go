package poolman

import (
	"reflect"
	"unsafe"

	"github.com/QuangTung97/poolman/mem"
)

// MemoryConfig ...
type MemoryConfig struct {
	HeapSize int
}

// Memory is the allocation surface the rest of the runtime uses: it owns
// a heap and a pool manager and resolves requested byte sizes to chunk
// classes.
type Memory struct {
	heap    *mem.Heap
	manager *mem.Manager
}

// NewMemory ...
func NewMemory(conf MemoryConfig) (*Memory, error) {
	heap, err := mem.AllocHeap(conf.HeapSize)
	if err != nil {
		return nil, err
	}
	return &Memory{
		heap:    heap,
		manager: mem.NewManager(heap),
	}, nil
}

// Alloc returns the offset of a chunk holding at least size bytes, or
// false when the size is outside the chunk ladder or memory ran out.
func (m *Memory) Alloc(size uint32) (uint32, bool) {
	class, ok := mem.SizeToClass(size)
	if !ok {
		return 0, false
	}
	return m.manager.Allocate(class)
}

// Free returns a chunk allocated with the same size.
func (m *Memory) Free(size uint32, addr uint32) {
	class, ok := mem.SizeToClass(size)
	assertTrue(ok)
	m.manager.Free(class, addr)
}

// Bytes ...
func (m *Memory) Bytes(addr uint32, length uint32) []byte {
	var result []byte
	header := (*reflect.SliceHeader)(unsafe.Pointer(&result))
	header.Data = uintptr(m.heap.ToRealAddr(addr))
	header.Len = int(length)
	header.Cap = int(length)
	return result
}

// ToRealAddr ...
func (m *Memory) ToRealAddr(addr uint32) unsafe.Pointer {
	return m.heap.ToRealAddr(addr)
}

// GetHeap ...
func (m *Memory) GetHeap() *mem.Heap {
	return m.heap
}

// GetManager ...
func (m *Memory) GetManager() *mem.Manager {
	return m.manager
}

// Close ...
func (m *Memory) Close() error {
	return m.heap.Close()
}

func assertTrue(b bool) {
	if !b {
		panic("must be true")
	}
}
