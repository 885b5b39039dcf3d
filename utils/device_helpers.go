package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gocca"
	"github.com/sirupsen/logrus"
)

// ErrNoDevice is returned when none of the requested backends can be opened.
var ErrNoDevice = errors.New("no compute device available")

// accelerators are OCCA modes that execute on a device other than the host CPU.
var accelerators = map[string]bool{
	"CUDA":   true,
	"OpenCL": true,
	"HIP":    true,
	"Metal":  true,
	"SYCL":   true,
	"dpcpp":  true,
}

// IsAccelerator reports whether an OCCA mode runs on an accelerator.
func IsAccelerator(mode string) bool {
	return accelerators[mode]
}

// OpenDevice tries each OCCA property string in order and returns the first
// device that opens. Backends are expected accelerator-first so that a
// missing GPU falls back to the host processor.
func OpenDevice(backends []string, log *logrus.Entry) (*gocca.OCCADevice, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	var lastErr error
	for i, props := range backends {
		device, err := gocca.NewDevice(props)
		if err != nil {
			lastErr = err
			log.WithFields(logrus.Fields{
				"props": props,
				"err":   err,
			}).Debug("device backend unavailable")
			continue
		}
		if device == nil {
			lastErr = fmt.Errorf("backend %s returned no device", props)
			continue
		}

		mode := device.Mode()
		entry := log.WithFields(logrus.Fields{
			"mode":        mode,
			"accelerator": IsAccelerator(mode),
		})
		if i > 0 {
			entry.Warn("preferred device not found, using fallback")
		}
		entry.Info("created device")
		return device, nil
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no backends configured", ErrNoDevice)
	}
	return nil, fmt.Errorf("%w (tried %s): %v", ErrNoDevice, strings.Join(backends, ", "), lastErr)
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	device, err := OpenDevice(backends, nil)
	if err != nil {
		// Should not reach here
		panic(fmt.Sprintf("Failed to create any Device: %v", err))
	}
	fmt.Printf("Created %s Device\n", device.Mode())
	return device
}
