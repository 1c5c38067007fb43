package restore

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/jpfielding/dejpeg.go/pkg/recon"
)

var (
	ErrBadOption         = errors.New("bad option")
	ErrUnsupportedOutput = errors.New("unsupported output")
)

// Output formats
const (
	FormatPNG   = "png"
	FormatLJPEG = "ljpeg"
	FormatRaw   = "raw"
)

// Options configures a restore run.
type Options struct {
	// Weights and Iterations hold one value for every component or a single
	// value applied to all of them.
	Weights    []float32
	Iterations []int
	// Kernel names the TV kernel, "" for the build default.
	Kernel string
	// Workers bounds the goroutines transforming blocks within one solve.
	Workers int
	// Parallel bounds the number of components solved at once.
	Parallel  int
	PNGBits   int
	Format    string
	MaxPixels int
}

// DefaultOptions matches the command line defaults.
func DefaultOptions() Options {
	return Options{
		Weights:    []float32{0.3},
		Iterations: []int{50},
		Workers:    runtime.GOMAXPROCS(0),
		Parallel:   3,
		PNGBits:    16,
		Format:     FormatPNG,
	}
}

// Validate checks the options that do not depend on the input image.
func (o Options) Validate() error {
	switch {
	case len(o.Weights) == 0:
		return fmt.Errorf("%w: no weight", ErrBadOption)
	case len(o.Iterations) == 0:
		return fmt.Errorf("%w: no iteration count", ErrBadOption)
	case o.PNGBits != 8 && o.PNGBits != 16:
		return fmt.Errorf("%w: png bits %d", ErrBadOption, o.PNGBits)
	case o.Workers < 0 || o.Parallel < 0:
		return fmt.Errorf("%w: negative concurrency", ErrBadOption)
	}
	for _, w := range o.Weights {
		if w < 0 || math.IsNaN(float64(w)) {
			return fmt.Errorf("%w: weight %v", ErrBadOption, w)
		}
	}
	for _, n := range o.Iterations {
		if n < 0 {
			return fmt.Errorf("%w: iterations %d", ErrBadOption, n)
		}
	}
	switch o.Format {
	case FormatPNG, FormatLJPEG, FormatRaw:
	default:
		return fmt.Errorf("%w: format %q", ErrBadOption, o.Format)
	}
	if _, err := recon.KernelByName(o.Kernel); err != nil {
		return fmt.Errorf("%w: %v", ErrBadOption, err)
	}
	return nil
}

// forComponents checks the per component lists against n components.
func (o Options) forComponents(n int) error {
	if len(o.Weights) != 1 && len(o.Weights) != n {
		return fmt.Errorf("%w: %d weights for %d components", ErrBadOption, len(o.Weights), n)
	}
	if len(o.Iterations) != 1 && len(o.Iterations) != n {
		return fmt.Errorf("%w: %d iteration counts for %d components", ErrBadOption, len(o.Iterations), n)
	}
	return nil
}

func (o Options) weight(i int) float32 {
	if len(o.Weights) == 1 {
		return o.Weights[0]
	}
	return o.Weights[i]
}

func (o Options) iterations(i int) int {
	if len(o.Iterations) == 1 {
		return o.Iterations[0]
	}
	return o.Iterations[i]
}

// ParseWeights parses "0.3" or "0.3,0.1,0.1".
func ParseWeights(s string) ([]float32, error) {
	var out []float32
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: weight %q", ErrBadOption, f)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

// ParseIterations parses "50" or "50,20,20".
func ParseIterations(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("%w: iterations %q", ErrBadOption, f)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatFromPath picks the output format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ljpg", ".ljpeg", ".jpg", ".jpeg":
		return FormatLJPEG
	case ".zst", ".raw", ".f32":
		return FormatRaw
	default:
		return FormatPNG
	}
}
