package wasmhost

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrWrongMemorySize is returned when a slice's ptr+len would read or write
// outside the guest's current linear memory.
var ErrWrongMemorySize = errors.New("wasmhost: slice out of bounds")

// ErrInvalidUTF8 is returned by SliceToString when the guest bytes are not
// valid UTF-8.
var ErrInvalidUTF8 = errors.New("wasmhost: invalid utf-8")

// ErrAllocFailed is returned when the guest's alloc() returns 0 (OOM) or a
// pointer the host cannot subsequently grow memory to cover.
var ErrAllocFailed = errors.New("wasmhost: guest allocation failed")

// guestMemory is the narrow slice of wazero's api.Memory this package
// needs. wazero's api.Memory satisfies it structurally, and tests can
// exercise Bridge against a fake without touching the wazero runtime.
type guestMemory interface {
	Size() uint32
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// guestFunction is the narrow slice of wazero's api.Function this package
// needs to invoke alloc/dealloc.
type guestFunction interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Bridge couples a guest module's memory with its alloc/dealloc exports.
// One Bridge is created per Instance and reused for every guest call; it
// holds no guest-call-specific state so it is safe to reuse across calls
// that are already serialized by the owning lapp's write lock.
type Bridge struct {
	mem     guestMemory
	alloc   guestFunction
	dealloc guestFunction
}

// NewBridge couples a module's memory export with its resolved alloc and
// dealloc exports. All three must be non-nil; their absence is a caller
// bug, checked at Instance construction time rather than here.
func NewBridge(mem guestMemory, alloc, dealloc guestFunction) (*Bridge, error) {
	if mem == nil {
		return nil, fmt.Errorf("wasmhost: module does not export memory")
	}
	if alloc == nil || dealloc == nil {
		return nil, fmt.Errorf("wasmhost: module does not export alloc/dealloc")
	}
	return &Bridge{mem: mem, alloc: alloc, dealloc: dealloc}, nil
}

// CopyIn allocates len(bytes) inside guest memory (growing the memory one
// page at a time until the allocation fits) and copies bytes in, returning
// the guest pointer.
func (b *Bridge) CopyIn(ctx context.Context, data []byte) (uint32, error) {
	n := uint32(len(data))
	results, err := b.alloc.Call(ctx, uint64(n))
	if err != nil {
		return 0, fmt.Errorf("wasmhost: guest alloc trapped: %w", err)
	}
	if len(results) == 0 {
		return 0, ErrAllocFailed
	}
	ptr := uint32(results[0])
	if ptr == 0 && n > 0 {
		return 0, ErrAllocFailed
	}

	if err := b.ensureCapacity(ptr, n); err != nil {
		return 0, err
	}

	if n > 0 && !b.mem.Write(ptr, data) {
		return 0, ErrWrongMemorySize
	}
	return ptr, nil
}

// ensureCapacity grows guest memory one page at a time until ptr+size is
// addressable, matching spec.md §4.1's "grow the memory one page at a time
// until ptr+len <= data_size" contract.
func (b *Bridge) ensureCapacity(ptr, size uint32) error {
	need := uint64(ptr) + uint64(size)
	for uint64(b.mem.Size()) < need {
		if _, ok := b.mem.Grow(1); !ok {
			return fmt.Errorf("wasmhost: failed to grow guest memory to %d bytes", need)
		}
	}
	return nil
}

// TakeOut copies bytes out of guest memory at the given slice, then calls
// dealloc(ptr,len) to hand ownership of the buffer back to the guest's
// allocator. Ownership of the returned []byte belongs to the host; the
// slice handle must not be reused after this call.
func (b *Bridge) TakeOut(ctx context.Context, s Slice) ([]byte, error) {
	if s.Empty() {
		return nil, nil
	}
	need := uint64(s.Ptr) + uint64(s.Len)
	if need > uint64(b.mem.Size()) {
		return nil, ErrWrongMemorySize
	}
	raw, ok := b.mem.Read(s.Ptr, s.Len)
	if !ok {
		return nil, ErrWrongMemorySize
	}
	out := make([]byte, len(raw))
	copy(out, raw)

	if _, err := b.dealloc.Call(ctx, uint64(s.Ptr), uint64(s.Len)); err != nil {
		return nil, fmt.Errorf("wasmhost: guest dealloc trapped: %w", err)
	}
	return out, nil
}

// BytesToSlice allocates bytes in guest memory and returns the packed
// WasmSlice handle without taking ownership back — the handle is meant to
// be passed to a guest export as an argument.
func (b *Bridge) BytesToSlice(ctx context.Context, data []byte) (Slice, error) {
	if len(data) == 0 {
		return Slice{}, nil
	}
	ptr, err := b.CopyIn(ctx, data)
	if err != nil {
		return Slice{}, err
	}
	return Slice{Ptr: ptr, Len: uint32(len(data))}, nil
}

// SliceToVec reads a slice's bytes without transferring ownership or
// calling dealloc — used for arguments a host import receives from a guest
// call, where the guest (not the host) owns the buffer's lifetime.
func (b *Bridge) SliceToVec(s Slice) ([]byte, error) {
	if s.Empty() {
		return nil, nil
	}
	need := uint64(s.Ptr) + uint64(s.Len)
	if need > uint64(b.mem.Size()) {
		return nil, ErrWrongMemorySize
	}
	raw, ok := b.mem.Read(s.Ptr, s.Len)
	if !ok {
		return nil, ErrWrongMemorySize
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// SliceToString reads a slice as a UTF-8 string, validating encoding.
func (b *Bridge) SliceToString(s Slice) (string, error) {
	data, err := b.SliceToVec(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

// Dealloc releases a guest-owned buffer previously produced by the guest's
// own alloc, without reading it first. Used by host imports discarding a
// guest argument slice after decoding it is not applicable — guest-owned
// argument buffers are the guest's to free. This exists for symmetry with
// TakeOut when a host-allocated reply slice must be cleaned up on an error
// path before handing control back to the guest.
func (b *Bridge) Dealloc(ctx context.Context, s Slice) error {
	if s.Empty() {
		return nil
	}
	_, err := b.dealloc.Call(ctx, uint64(s.Ptr), uint64(s.Len))
	return err
}
