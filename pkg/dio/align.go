package dio

import "unsafe"

// uintptrOf returns the address of the first byte of buf. Used only to
// compute an alignment offset; the returned value is never dereferenced or
// stored past the lifetime of buf.
func uintptrOf(buf []byte) uintptr {
	if len(buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&buf[0]))
}
