package runner

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/notargets/gocca"
)

var (
	// ErrInvalidLength is returned for vector lengths outside [1, MaxInt32].
	ErrInvalidLength = errors.New("invalid vector length")

	// ErrKernelSourceNotFound is returned when the kernel source file is missing.
	ErrKernelSourceNotFound = errors.New("kernel source file not found")

	// ErrBuildFailed wraps the device compiler diagnostic of a failed build.
	ErrBuildFailed = errors.New("kernel build failed")

	// ErrAllocation is returned when the device cannot provide a buffer.
	ErrAllocation = errors.New("device memory allocation failed")

	// ErrLengthMismatch is returned when a host vector does not match N.
	ErrLengthMismatch = errors.New("host vector length mismatch")

	// ErrNotReady is returned when a stage runs before its prerequisites.
	ErrNotReady = errors.New("runner not ready")
)

// Names of the pooled device buffers
const (
	BufA   = "a"
	BufB   = "b"
	BufOut = "out"
)

// Runner is the context for one vector-add run. It owns the kernel and the
// device buffers it creates; the device itself is borrowed and must outlive
// the Runner.
type Runner struct {
	Device       *gocca.OCCADevice
	Kernel       *gocca.OCCAKernel
	KernelName   string
	N            int
	PooledMemory map[string]*gocca.OCCAMemory
}

// NewRunner creates a Runner for vectors of n elements.
func NewRunner(device *gocca.OCCADevice, n int) (*Runner, error) {
	if device == nil {
		return nil, fmt.Errorf("%w: nil device", ErrNotReady)
	}
	if n < 1 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return &Runner{
		Device:       device,
		N:            n,
		PooledMemory: make(map[string]*gocca.OCCAMemory),
	}, nil
}

// LoadKernelSource reads a kernel source file.
func LoadKernelSource(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrKernelSourceNotFound, path, err)
		}
		return "", fmt.Errorf("failed to read kernel source %s: %w", path, err)
	}
	return string(src), nil
}

// BuildKernel compiles kernelName from kernelSource on the runner's device.
func (kr *Runner) BuildKernel(kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	if kr.Kernel != nil {
		kr.Kernel.Free()
		kr.Kernel = nil
	}

	var kernel *gocca.OCCAKernel
	var err error

	if kr.Device.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = kr.Device.BuildKernelFromString(kernelSource, kernelName, props)
	} else {
		kernel, err = kr.Device.BuildKernelFromString(kernelSource, kernelName, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s:\n%w", ErrBuildFailed, kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("%w: build returned nil for %s", ErrBuildFailed, kernelName)
	}

	kr.Kernel = kernel
	kr.KernelName = kernelName
	return kernel, nil
}

// Free releases the kernel and all device buffers. It is safe to call more
// than once.
func (kr *Runner) Free() {
	if kr == nil {
		return
	}
	if kr.Kernel != nil {
		kr.Kernel.Free()
		kr.Kernel = nil
	}
	for name, mem := range kr.PooledMemory {
		mem.Free()
		delete(kr.PooledMemory, name)
	}
}
