package wasmhost

import (
	"bytes"
	"context"
	"testing"
)

// fakeMemory is a minimal in-process stand-in for a guest's linear memory,
// growable one page at a time like the real thing.
type fakeMemory struct {
	data []byte
}

const fakePageSize = 65536

func newFakeMemory(initialPages uint32) *fakeMemory {
	return &fakeMemory{data: make([]byte, initialPages*fakePageSize)}
}

func (m *fakeMemory) Size() uint32 { return uint32(len(m.data)) }

func (m *fakeMemory) Grow(deltaPages uint32) (uint32, bool) {
	prev := uint32(len(m.data)) / fakePageSize
	m.data = append(m.data, make([]byte, deltaPages*fakePageSize)...)
	return prev, true
}

func (m *fakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if uint64(offset)+uint64(byteCount) > uint64(len(m.data)) {
		return nil, false
	}
	return m.data[offset : offset+byteCount], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	if uint64(offset)+uint64(len(v)) > uint64(len(m.data)) {
		return false
	}
	copy(m.data[offset:], v)
	return true
}

// fakeAllocator is a bump allocator standing in for a guest's exported
// alloc/dealloc pair. dealloc is a no-op bump allocators don't reclaim;
// it only records that it was called, for ownership-transfer assertions.
type fakeAllocator struct {
	mem          *fakeMemory
	next         uint32
	deallocCalls []Slice
	allocFails   bool
}

func (a *fakeAllocator) allocFn() guestFunction { return fakeFunc(a.alloc) }
func (a *fakeAllocator) deallocFn() guestFunction { return fakeFunc(a.dealloc) }

func (a *fakeAllocator) alloc(ctx context.Context, params ...uint64) ([]uint64, error) {
	if a.allocFails {
		return []uint64{0}, nil
	}
	size := uint32(params[0])
	ptr := a.next
	a.next += size
	return []uint64{uint64(ptr)}, nil
}

func (a *fakeAllocator) dealloc(ctx context.Context, params ...uint64) ([]uint64, error) {
	a.deallocCalls = append(a.deallocCalls, Slice{Ptr: uint32(params[0]), Len: uint32(params[1])})
	return nil, nil
}

type fakeFunc func(ctx context.Context, params ...uint64) ([]uint64, error)

func (f fakeFunc) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f(ctx, params...)
}

func newTestBridge(t *testing.T) (*Bridge, *fakeAllocator) {
	t.Helper()
	mem := newFakeMemory(1)
	alloc := &fakeAllocator{mem: mem}
	b, err := NewBridge(mem, alloc.allocFn(), alloc.deallocFn())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	return b, alloc
}

func TestSlicePackUnpack(t *testing.T) {
	s := Slice{Ptr: 0x1234, Len: 0x5678}
	got := Unpack(s.Pack())
	if got != s {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, s)
	}
	if !(Slice{}).Empty() {
		t.Fatal("zero-value slice should be empty")
	}
}

func TestCopyInTakeOutRoundTrip(t *testing.T) {
	b, alloc := newTestBridge(t)
	ctx := context.Background()

	payload := []byte("hello laplace")
	ptr, err := b.CopyIn(ctx, payload)
	if err != nil {
		t.Fatalf("CopyIn: %v", err)
	}

	out, err := b.TakeOut(ctx, Slice{Ptr: ptr, Len: uint32(len(payload))})
	if err != nil {
		t.Fatalf("TakeOut: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("round trip mismatch: got %q want %q", out, payload)
	}
	if len(alloc.deallocCalls) != 1 {
		t.Fatalf("expected exactly one dealloc call, got %d", len(alloc.deallocCalls))
	}
}

func TestTakeOutEmptySliceIsNoop(t *testing.T) {
	b, alloc := newTestBridge(t)
	out, err := b.TakeOut(context.Background(), Slice{})
	if err != nil || out != nil {
		t.Fatalf("expected nil,nil for empty slice, got %v, %v", out, err)
	}
	if len(alloc.deallocCalls) != 0 {
		t.Fatal("dealloc must not be called for an empty slice")
	}
}

func TestTakeOutOutOfBoundsIsWrongMemorySize(t *testing.T) {
	b, _ := newTestBridge(t)
	_, err := b.TakeOut(context.Background(), Slice{Ptr: fakePageSize * 10, Len: 16})
	if err != ErrWrongMemorySize {
		t.Fatalf("expected ErrWrongMemorySize, got %v", err)
	}
}

func TestCopyInGrowsMemoryAsNeeded(t *testing.T) {
	mem := newFakeMemory(0)
	alloc := &fakeAllocator{mem: mem}
	b, err := NewBridge(mem, alloc.allocFn(), alloc.deallocFn())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	payload := make([]byte, fakePageSize+10)
	ptr, err := b.CopyIn(context.Background(), payload)
	if err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	if mem.Size() < ptr+uint32(len(payload)) {
		t.Fatalf("memory not grown enough: size=%d need=%d", mem.Size(), ptr+uint32(len(payload)))
	}
}

func TestCopyInAllocFailureIsWrongBufferLength(t *testing.T) {
	mem := newFakeMemory(1)
	alloc := &fakeAllocator{mem: mem, allocFails: true}
	b, err := NewBridge(mem, alloc.allocFn(), alloc.deallocFn())
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	_, err = b.CopyIn(context.Background(), []byte("x"))
	if err != ErrAllocFailed {
		t.Fatalf("expected ErrAllocFailed, got %v", err)
	}
}

func TestSliceToStringValidatesUTF8(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()
	ptr, err := b.CopyIn(ctx, []byte{0xff, 0xfe, 0xfd})
	if err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	_, err = b.SliceToString(Slice{Ptr: ptr, Len: 3})
	if err != ErrInvalidUTF8 {
		t.Fatalf("expected ErrInvalidUTF8, got %v", err)
	}
}

func TestSliceToVecDoesNotDealloc(t *testing.T) {
	b, alloc := newTestBridge(t)
	ctx := context.Background()
	ptr, err := b.CopyIn(ctx, []byte("abc"))
	if err != nil {
		t.Fatalf("CopyIn: %v", err)
	}
	out, err := b.SliceToVec(Slice{Ptr: ptr, Len: 3})
	if err != nil {
		t.Fatalf("SliceToVec: %v", err)
	}
	if string(out) != "abc" {
		t.Fatalf("unexpected content: %q", out)
	}
	if len(alloc.deallocCalls) != 0 {
		t.Fatal("SliceToVec must not call dealloc")
	}
}
