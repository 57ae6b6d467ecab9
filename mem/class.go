package mem

// ChunkClass ...
type ChunkClass uint32

// ClassCount is the number of entries in the chunk size ladder.
const ClassCount = 6

const minChunkSize = 4

// ClassSize ...
func ClassSize(class ChunkClass) uint32 {
	return minChunkSize << class
}

// SizeToClass returns the smallest class whose chunk size covers the
// requested size.
func SizeToClass(size uint32) (ChunkClass, bool) {
	if size == 0 {
		return 0, false
	}
	for class := ChunkClass(0); class < ClassCount; class++ {
		if ClassSize(class) >= size {
			return class, true
		}
	}
	return 0, false
}

func exactSizeClass(size uint32) (ChunkClass, bool) {
	for class := ChunkClass(0); class < ClassCount; class++ {
		if ClassSize(class) == size {
			return class, true
		}
	}
	return 0, false
}
