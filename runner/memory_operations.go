package runner

import (
	"fmt"
	"unsafe"

	"github.com/notargets/VecAdd/vector"
	"github.com/notargets/gocca"
)

// IntSize is the size in bytes of a device vector element.
const IntSize = 4

// Bytes returns the size of one device buffer.
func (kr *Runner) Bytes() int64 {
	return int64(kr.N) * IntSize
}

// Allocate creates the two input buffers and the output buffer on the device.
// On failure any buffer already created is released.
func (kr *Runner) Allocate() error {
	if kr.IsAllocated() {
		return nil
	}

	size := kr.Bytes()
	for _, name := range []string{BufA, BufB, BufOut} {
		mem, err := guardAlloc(name, size, func() *gocca.OCCAMemory {
			return kr.Device.Malloc(size, nil, nil)
		})
		if err != nil {
			kr.freeBuffers()
			return err
		}
		kr.PooledMemory[name] = mem
	}
	return nil
}

// guardAlloc converts a panicking or nil allocation into ErrAllocation.
func guardAlloc(name string, size int64, alloc func() *gocca.OCCAMemory) (mem *gocca.OCCAMemory, err error) {
	defer func() {
		if r := recover(); r != nil {
			mem = nil
			err = fmt.Errorf("%w: buffer %s (%d bytes): %v", ErrAllocation, name, size, r)
		}
	}()

	mem = alloc()
	if mem == nil {
		return nil, fmt.Errorf("%w: buffer %s (%d bytes)", ErrAllocation, name, size)
	}
	return mem, nil
}

// IsAllocated reports whether all device buffers exist.
func (kr *Runner) IsAllocated() bool {
	for _, name := range []string{BufA, BufB, BufOut} {
		if kr.PooledMemory[name] == nil {
			return false
		}
	}
	return true
}

// GetMemory returns the device memory for a named buffer
func (kr *Runner) GetMemory(name string) *gocca.OCCAMemory {
	return kr.PooledMemory[name]
}

// Upload copies both input vectors host→device. The copies are blocking.
func (kr *Runner) Upload(a, b vector.Vector) error {
	if !kr.IsAllocated() {
		return fmt.Errorf("%w: device memory not allocated - call Allocate first", ErrNotReady)
	}
	if err := kr.checkLength("a", a); err != nil {
		return err
	}
	if err := kr.checkLength("b", b); err != nil {
		return err
	}

	kr.PooledMemory[BufA].CopyFrom(unsafe.Pointer(&a[0]), kr.Bytes())
	kr.PooledMemory[BufB].CopyFrom(unsafe.Pointer(&b[0]), kr.Bytes())
	return nil
}

// Download copies the output buffer device→host. The copy is blocking.
func (kr *Runner) Download(out vector.Vector) error {
	if !kr.IsAllocated() {
		return fmt.Errorf("%w: device memory not allocated - call Allocate first", ErrNotReady)
	}
	if err := kr.checkLength("out", out); err != nil {
		return err
	}

	kr.PooledMemory[BufOut].CopyTo(unsafe.Pointer(&out[0]), kr.Bytes())
	return nil
}

func (kr *Runner) checkLength(name string, v vector.Vector) error {
	if len(v) != kr.N {
		return fmt.Errorf("%w: %s has %d elements, runner expects %d",
			ErrLengthMismatch, name, len(v), kr.N)
	}
	return nil
}

func (kr *Runner) freeBuffers() {
	for _, name := range []string{BufA, BufB, BufOut} {
		if mem, exists := kr.PooledMemory[name]; exists {
			mem.Free()
			delete(kr.PooledMemory, name)
		}
	}
}
