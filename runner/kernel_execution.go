package runner

import (
	"fmt"
)

// Run launches the kernel over N work items and blocks until the device
// has finished.
func (kr *Runner) Run() error {
	if kr.Kernel == nil {
		return fmt.Errorf("%w: kernel not compiled - use BuildKernel first", ErrNotReady)
	}

	args, err := kr.buildKernelArguments()
	if err != nil {
		return fmt.Errorf("failed to build arguments: %w", err)
	}

	if err := kr.Kernel.RunWithArgs(args...); err != nil {
		return fmt.Errorf("kernel %s execution failed: %w", kr.KernelName, err)
	}

	kr.Device.Finish()
	return nil
}

// buildKernelArguments returns the launch arguments in kernel signature
// order: (const int n, const int *a, const int *b, int *out).
func (kr *Runner) buildKernelArguments() ([]interface{}, error) {
	args := []interface{}{int32(kr.N)}
	for _, name := range []string{BufA, BufB, BufOut} {
		mem, exists := kr.PooledMemory[name]
		if !exists || mem == nil {
			return nil, fmt.Errorf("%w: memory for %s not found", ErrNotReady, name)
		}
		args = append(args, mem)
	}
	return args, nil
}
