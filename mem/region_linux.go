//go:build linux

package mem

import "golang.org/x/sys/unix"

// mapRegion allocates virtual memory outside the Go heap, so the
// garbage collector never scans heap regions.
func mapRegion(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE,
	)
}

func unmapRegion(buf []byte) error {
	return unix.Munmap(buf)
}
