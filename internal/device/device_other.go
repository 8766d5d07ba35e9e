//go:build !linux

package device

// blockSize has no portable implementation; the size stays unknown.
func blockSize(path string) (uint64, error) {
	return 0, nil
}
