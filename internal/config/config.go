// Package config defines the CLI flag sets for the GPU and CPU variants
// and the ErrKind classification spec.md §7 names for exit-code mapping.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nebula-sim/nebula/internal/geometry"
	"github.com/nebula-sim/nebula/internal/material"
	"github.com/nebula-sim/nebula/internal/prescan"
	"github.com/nebula-sim/nebula/internal/primaries"
	"github.com/nebula-sim/nebula/internal/store"
)

// tuningOverrides is the optional --config YAML document: a layer of
// defaults applied over the built-in ones and under which flags still
// win, mirroring this corpus's defaults-then-override config convention.
// Pointer fields distinguish "absent from the file" from "explicitly
// zero".
type tuningOverrides struct {
	EnergyThreshold *float64 `yaml:"energy_threshold"`
	Capacity        *int     `yaml:"capacity"`
	PrescanSize     *int     `yaml:"prescan_size"`
	BatchFactor     *float64 `yaml:"batch_factor"`
	Seed            *int64   `yaml:"seed"`
	SortPrimaries   *bool    `yaml:"sort_primaries"`
	DetectFilename  *string  `yaml:"detect_filename"`
	SummaryFilename *string  `yaml:"summary_filename"`
}

// extractConfigPath scans args for --config/-config (space- or
// equals-separated) ahead of the full flag.Parse pass, since the tuning
// file's values must be known before they can be registered as flag
// defaults.
func extractConfigPath(args []string) string {
	for i, a := range args {
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		}
	}
	return ""
}

// loadTuningOverrides reads the optional --config YAML file. An empty
// path is not an error; the caller only supplies one when the flag was
// present in args. A path that cannot be read or parsed is BadArgs.
func loadTuningOverrides(path string) (tuningOverrides, error) {
	var o tuningOverrides
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("%w: reading --config %s: %v", ErrBadArgs, path, err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("%w: parsing --config %s: %v", ErrBadArgs, path, err)
	}
	return o, nil
}

// GPU holds the GPU variant's CLI options (spec §6).
type GPU struct {
	EnergyThreshold float64
	Capacity        int
	PrescanSize     int
	BatchFactor     float64
	Seed            int64
	SortPrimaries   bool
	MetricsAddr     string
	SummaryFilename string

	GeometryPath  string
	PrimariesPath string
	MaterialPaths []string
}

// defaultSeed is spec §6's default master RNG seed, 0x14f8214e78c7e39b.
const defaultSeed int64 = 0x14f8214e78c7e39b

// ParseGPU parses the GPU variant's flags and trailing positional
// arguments (<geometry.tri> <primaries.pri> <material0> [material1...]).
// Returns ErrKind BadArgs wrapped in an error if fewer than three
// positional arguments remain.
func ParseGPU(fs *flag.FlagSet, args []string) (GPU, error) {
	o, err := loadTuningOverrides(extractConfigPath(args))
	if err != nil {
		return GPU{}, err
	}

	energyThreshold, capacity, prescanSize, batchFactor, seed, sortPrimaries := 0.0, 1_000_000, 1000, 0.9, defaultSeed, false
	if o.EnergyThreshold != nil {
		energyThreshold = *o.EnergyThreshold
	}
	if o.Capacity != nil {
		capacity = *o.Capacity
	}
	if o.PrescanSize != nil {
		prescanSize = *o.PrescanSize
	}
	if o.BatchFactor != nil {
		batchFactor = *o.BatchFactor
	}
	if o.Seed != nil {
		seed = *o.Seed
	}
	if o.SortPrimaries != nil {
		sortPrimaries = *o.SortPrimaries
	}

	var c GPU
	var configPath string
	fs.StringVar(&configPath, "config", "", "optional YAML file of tuning overrides, layered over built-in defaults and under flags")
	fs.Float64Var(&c.EnergyThreshold, "energy-threshold", energyThreshold, "particles below this energy are terminated")
	fs.IntVar(&c.Capacity, "capacity", capacity, "particle store slab size")
	fs.IntVar(&c.PrescanSize, "prescan-size", prescanSize, "pilot particle count")
	fs.Float64Var(&c.BatchFactor, "batch-factor", batchFactor, "steady-state headroom fraction")
	fs.Int64Var(&c.Seed, "seed", seed, "master RNG seed")
	fs.BoolVar(&c.SortPrimaries, "sort-primaries", sortPrimaries, "apply the loader-defined primaries pre-sort")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "optional host:port to serve Prometheus /metrics on")
	summaryFilename := ""
	if o.SummaryFilename != nil {
		summaryFilename = *o.SummaryFilename
	}
	fs.StringVar(&c.SummaryFilename, "summary-filename", summaryFilename, "optional CSV file for per-worker run summaries")

	if err := fs.Parse(args); err != nil {
		return GPU{}, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}

	rest := fs.Args()
	if len(rest) < 3 {
		return GPU{}, fmt.Errorf("%w: expected <geometry.tri> <primaries.pri> <material0> [material1...], got %d positional args", ErrBadArgs, len(rest))
	}
	c.GeometryPath = rest[0]
	c.PrimariesPath = rest[1]
	c.MaterialPaths = rest[2:]
	return c, nil
}

// CPU holds the CPU variant's CLI options (spec §6).
type CPU struct {
	EnergyThreshold float64
	Seed            int64
	DetectFilename  string
	MetricsAddr     string
	SummaryFilename string

	GeometryPath  string
	PrimariesPath string
	MaterialPaths []string
}

// ParseCPU parses the CPU variant's flags and positional arguments.
func ParseCPU(fs *flag.FlagSet, args []string) (CPU, error) {
	o, err := loadTuningOverrides(extractConfigPath(args))
	if err != nil {
		return CPU{}, err
	}

	energyThreshold, seed, detectFilename := 0.0, defaultSeed, "stdout"
	if o.EnergyThreshold != nil {
		energyThreshold = *o.EnergyThreshold
	}
	if o.Seed != nil {
		seed = *o.Seed
	}
	if o.DetectFilename != nil {
		detectFilename = *o.DetectFilename
	}

	var c CPU
	var configPath string
	fs.StringVar(&configPath, "config", "", "optional YAML file of tuning overrides, layered over built-in defaults and under flags")
	fs.Float64Var(&c.EnergyThreshold, "energy-threshold", energyThreshold, "particles below this energy are terminated")
	fs.Int64Var(&c.Seed, "seed", seed, "master RNG seed")
	fs.StringVar(&c.DetectFilename, "detect-filename", detectFilename, "output file for detected records, or stdout")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "optional host:port to serve Prometheus /metrics on")
	summaryFilename := ""
	if o.SummaryFilename != nil {
		summaryFilename = *o.SummaryFilename
	}
	fs.StringVar(&c.SummaryFilename, "summary-filename", summaryFilename, "optional CSV file for per-worker run summaries")

	if err := fs.Parse(args); err != nil {
		return CPU{}, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}

	rest := fs.Args()
	if len(rest) < 3 {
		return CPU{}, fmt.Errorf("%w: expected <geometry.tri> <primaries.pri> <material0> [material1...], got %d positional args", ErrBadArgs, len(rest))
	}
	c.GeometryPath = rest[0]
	c.PrimariesPath = rest[1]
	c.MaterialPaths = rest[2:]
	return c, nil
}

// ErrKind is the error taxonomy spec.md §7 defines for exit-code mapping.
type ErrKind int

const (
	KindNone ErrKind = iota
	KindBadArgs
	KindInputMissing
	KindInputInconsistent
	KindDeviceError
	KindOutOfCapacity
	KindInterrupted
)

func (k ErrKind) String() string {
	switch k {
	case KindBadArgs:
		return "BadArgs"
	case KindInputMissing:
		return "InputMissing"
	case KindInputInconsistent:
		return "InputInconsistent"
	case KindDeviceError:
		return "DeviceError"
	case KindOutOfCapacity:
		return "OutOfCapacity"
	case KindInterrupted:
		return "Interrupted"
	default:
		return "None"
	}
}

// ErrBadArgs marks usage-mismatch errors raised directly by this package;
// prescan.ErrBadArgs, material's and geometry's own sentinels are
// classified below rather than re-wrapped in this one, so that the
// original error (and its %w chain) survives Classify.
var ErrBadArgs = errors.New("config: bad arguments")

// Classify maps an error from any loader or driver stage to the ErrKind
// spec.md §7 uses for exit codes. Sentinels stay package-local to their
// owning package (material.ErrInputMissing, geometry.ErrEmptyGeometry,
// material.ErrTooFewMaterials, store.ErrOutOfCapacity, prescan.ErrBadArgs);
// this function is the single place that knows the full taxonomy, so
// callers never need to import every producer package just to pick an
// exit code.
func Classify(err error) ErrKind {
	if err == nil {
		return KindNone
	}
	var tooFew material.ErrTooFewMaterials
	var outOfCap store.ErrOutOfCapacity

	switch {
	case errors.Is(err, ErrBadArgs), errors.Is(err, prescan.ErrBadArgs):
		return KindBadArgs
	case errors.Is(err, material.ErrInputMissing), errors.Is(err, geometry.ErrEmptyGeometry), errors.Is(err, primaries.ErrInputMissing):
		return KindInputMissing
	case errors.As(err, &tooFew):
		return KindInputInconsistent
	case errors.As(err, &outOfCap):
		return KindOutOfCapacity
	default:
		return KindDeviceError
	}
}

// ExitCode maps a Classify result to the process exit code spec.md §6
// specifies: 0 on success, 1 on BadArgs/InputMissing/InputInconsistent,
// a distinct non-zero code for device errors.
func ExitCode(k ErrKind) int {
	switch k {
	case KindNone:
		return 0
	case KindBadArgs, KindInputMissing, KindInputInconsistent:
		return 1
	case KindDeviceError:
		return 2
	default:
		return 1
	}
}
