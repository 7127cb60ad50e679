// Package wasmhost implements the memory bridge (spec.md §4.1): moving
// bytes across a wazero guest's linear memory and packing/unpacking the
// WasmSlice handle that is the sole currency of guest/host byte transfer.
package wasmhost

// Slice is the host-side decomposition of the 64-bit WasmSlice handle:
// high 32 bits are a byte offset into the guest's linear memory, low 32
// bits are a length. ptr=0, len=0 denotes an empty slice.
type Slice struct {
	Ptr uint32
	Len uint32
}

// Empty reports whether the slice denotes the empty value.
func (s Slice) Empty() bool { return s.Ptr == 0 && s.Len == 0 }

// Pack collapses a Slice into the wire-level uint64 handle.
func (s Slice) Pack() uint64 {
	return (uint64(s.Ptr) << 32) | uint64(s.Len)
}

// Unpack decomposes a packed uint64 handle into a Slice.
func Unpack(v uint64) Slice {
	return Slice{Ptr: uint32(v >> 32), Len: uint32(v)}
}
