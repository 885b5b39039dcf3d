// Package config holds the run configuration for a single vector-add benchmark.
package config

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultN is the vector length used when none is given.
	DefaultN = 100000000

	DefaultKernelPath = "./kernels/vector_ops.okl"
	DefaultKernelName = "vector_add"
)

// DefaultBackends lists OCCA device properties in fallback order: accelerators
// first, then general-purpose processors.
var DefaultBackends = []string{
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "OpenCL", "platform_id": 0, "device_id": 0}`,
	`{"mode": "OpenMP"}`,
	`{"mode": "Serial"}`,
}

// Config describes one run.
type Config struct {
	// Number of elements in each vector.
	N int `yaml:"n"`

	// Path of the kernel source file and the kernel to build from it.
	KernelPath string `yaml:"kernel_path"`
	KernelName string `yaml:"kernel_name"`

	// OCCA device property strings, tried in order.
	Backends []string `yaml:"backends"`

	// Seed for the host vector generator. Zero draws a fresh seed per run.
	Seed int64 `yaml:"seed"`

	// Verify checks the device result against a host-side sum.
	Verify bool `yaml:"verify"`

	// Print echoes vector snapshots to the output writer.
	Print bool `yaml:"print"`

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry `yaml:"-"`

	// The clock used for timing. Defaults to the wall clock.
	Clock clock.Clock `yaml:"-"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		N:          DefaultN,
		KernelPath: DefaultKernelPath,
		KernelName: DefaultKernelName,
		Backends:   append([]string(nil), DefaultBackends...),
		Print:      true,
	}
}

// Load reads a YAML file and overlays it onto the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays YAML read from r onto cfg. Fields absent from the document
// keep their current values.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate reports every invalid field at once and fills in the logger and
// clock when they are unset.
func (cfg *Config) Validate() error {
	var err error
	if cfg.N < 1 {
		err = multierror.Append(err, xerrors.Errorf("invalid vector length %d: must be at least 1", cfg.N))
	}
	if cfg.N > math.MaxInt32 {
		err = multierror.Append(err, xerrors.Errorf("invalid vector length %d: exceeds %d", cfg.N, math.MaxInt32))
	}
	if cfg.KernelPath == "" {
		err = multierror.Append(err, xerrors.Errorf("kernel source path has not been specified"))
	}
	if cfg.KernelName == "" {
		err = multierror.Append(err, xerrors.Errorf("kernel name has not been specified"))
	}
	if len(cfg.Backends) == 0 {
		err = multierror.Append(err, xerrors.Errorf("no device backends configured"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return err
}
