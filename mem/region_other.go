//go:build !linux

package mem

func mapRegion(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapRegion(buf []byte) error {
	return nil
}
