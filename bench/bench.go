// Package bench runs the vector-add benchmark end to end: generate host
// vectors, open a device, build the kernel, move data, run, read back and
// report timing.
package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/notargets/VecAdd/config"
	"github.com/notargets/VecAdd/runner"
	"github.com/notargets/VecAdd/utils"
	"github.com/notargets/VecAdd/vector"
	"github.com/sirupsen/logrus"
)

// Report summarizes a completed run.
type Report struct {
	N          int
	DeviceMode string
	// Elapsed covers kernel launch through the blocking readback.
	Elapsed  time.Duration
	Verified bool

	A, B, Out vector.Vector
}

// Milliseconds returns Elapsed in fractional milliseconds.
func (r *Report) Milliseconds() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// Run executes one benchmark. Every device resource acquired is released
// before Run returns, on success and on error.
func Run(ctx context.Context, cfg *config.Config, out io.Writer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := cfg.Logger.WithField("n", cfg.N)

	rng := vector.NewRand(cfg.Seed)
	rep := &Report{
		N:   cfg.N,
		A:   vector.Generate(cfg.N, rng),
		B:   vector.Generate(cfg.N, rng),
		Out: make(vector.Vector, cfg.N),
	}
	if cfg.Print {
		fmt.Fprint(out, vector.Format(rep.A))
		fmt.Fprint(out, vector.Format(rep.B))
	}

	// Read the kernel before touching the device so a missing file leaves
	// nothing to release.
	source, err := runner.LoadKernelSource(cfg.KernelPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	device, err := utils.OpenDevice(cfg.Backends, log)
	if err != nil {
		return nil, err
	}
	defer device.Free()
	rep.DeviceMode = device.Mode()
	log = log.WithField("mode", rep.DeviceMode)

	kr, err := runner.NewRunner(device, cfg.N)
	if err != nil {
		return nil, err
	}
	defer kr.Free()

	if err := setup(ctx, kr, source, cfg.KernelName, rep, log); err != nil {
		return nil, err
	}

	start := cfg.Clock.Now()
	if err := kr.Run(); err != nil {
		return nil, err
	}
	if err := kr.Download(rep.Out); err != nil {
		return nil, fmt.Errorf("failed to read back result: %w", err)
	}
	rep.Elapsed = cfg.Clock.Now().Sub(start)

	if cfg.Print {
		fmt.Fprint(out, vector.Format(rep.Out))
	}
	fmt.Fprintf(out, "Kernel Execution Time: %f ms\n", rep.Milliseconds())
	log.WithField("elapsed", rep.Elapsed).Info("kernel complete")

	if cfg.Verify {
		if err := vector.Verify(rep.A, rep.B, rep.Out); err != nil {
			return rep, fmt.Errorf("result verification failed: %w", err)
		}
		rep.Verified = true
		log.Info("result verified against host sum")
	}
	return rep, nil
}

// setup builds the kernel, allocates the device buffers and uploads the inputs.
func setup(ctx context.Context, kr *runner.Runner, source, kernelName string,
	rep *Report, log *logrus.Entry) error {
	if _, err := kr.BuildKernel(source, kernelName); err != nil {
		return err
	}
	log.WithField("kernel", kernelName).Debug("kernel built")

	if err := kr.Allocate(); err != nil {
		return err
	}
	log.WithField("bytes", 3*kr.Bytes()).Debug("device buffers allocated")

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := kr.Upload(rep.A, rep.B); err != nil {
		return fmt.Errorf("failed to copy inputs to device: %w", err)
	}
	return ctx.Err()
}
