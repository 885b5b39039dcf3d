package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/notargets/VecAdd/bench"
	"github.com/notargets/VecAdd/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vecadd [N]",
		Short: "Add two random integer vectors on a compute device",
		Long: `vecadd fills two vectors of N integers in [0,100), copies them to the
first available compute device (accelerators first, then the host CPU),
adds them elementwise with a single kernel and reports the time taken by
the kernel and the result readback.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, args)
			if err != nil {
				return err
			}

			level, _ := cmd.Flags().GetString("log-level")
			logger, err := newLogger(stderr, level)
			if err != nil {
				return err
			}
			cfg.Logger = logger

			_, err = bench.Run(cmd.Context(), cfg, stdout)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.String("config", "", "YAML file with run settings")
	f.String("kernel", config.DefaultKernelPath, "Kernel source file")
	f.String("kernel-name", config.DefaultKernelName, "Kernel to build from the source file")
	f.StringArray("backend", nil, "OCCA device properties, tried in order (repeatable)")
	f.Int64("seed", 0, "Random seed for the input vectors (0 = fresh each run)")
	f.Bool("verify", false, "Check the device result against a host-side sum")
	f.Bool("quiet", false, "Print only the execution time")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	return cmd
}

// buildConfig layers defaults, the optional config file, explicitly set
// flags and finally the positional vector length.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	f := cmd.Flags()

	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if f.Changed("kernel") {
		cfg.KernelPath, _ = f.GetString("kernel")
	}
	if f.Changed("kernel-name") {
		cfg.KernelName, _ = f.GetString("kernel-name")
	}
	if f.Changed("backend") {
		cfg.Backends, _ = f.GetStringArray("backend")
	}
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("verify") {
		cfg.Verify, _ = f.GetBool("verify")
	}
	if f.Changed("quiet") {
		quiet, _ := f.GetBool("quiet")
		cfg.Print = !quiet
	}

	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid vector length %q: %w", args[0], err)
		}
		cfg.N = n
	}
	return &cfg, nil
}

func newLogger(out io.Writer, level string) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	return logrus.NewEntry(logger).WithField("app", "vecadd"), nil
}
