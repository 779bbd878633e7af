package browser

import "os"

// writeFile is a thin wrapper kept separate from Screenshot so it reads as
// an obvious swap point if a caller later wants to stream to object storage
// instead of the local disk.
func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
