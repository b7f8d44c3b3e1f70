package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cvisser/memsweep/outlog"
	"github.com/cvisser/memsweep/profiler"
)

// Range is a closed interval of integers.
type Range struct {
	From int
	To   int
}

// Len returns the number of integers in the range.
func (r Range) Len() int {
	if r.To < r.From {
		return 0
	}

	return r.To - r.From + 1
}

// Values returns the range contents in ascending order.
func (r Range) Values() []int {
	values := make([]int, 0, r.Len())
	for v := r.From; v <= r.To; v++ {
		values = append(values, v)
	}

	return values
}

// Variant identifies one measured program build and the log its results
// go to.
type Variant struct {
	Name       string
	BinaryPath string
	ExtraArgs  []string
	OutputPath string

	// InputsMode selects the input-data flavor the variant reads, and
	// doubles as the input subdirectory name. Empty means the variant
	// needs no prepared inputs.
	InputsMode string
}

// Config holds the parameters for one full sweep of one variant.
type Config struct {
	// Outer is the circuit-size exponent range, Inner the poly-count
	// exponent range. Both are traversed ascending, inner innermost.
	Outer Range
	Inner Range

	// Timeout bounds each invocation; zero means unbounded.
	Timeout time.Duration

	// KeepGoing records a sentinel 0 for a failed grid point and
	// continues, instead of aborting the sweep. Line position still maps
	// to grid position either way.
	KeepGoing bool

	// InputsGenerator is the binary that produces a variant's input file
	// for one grid point. Empty disables input preparation.
	InputsGenerator string

	// InputDir is the root of the input-file layout the variants read.
	InputDir string
}

// Summary reports what a sweep recorded.
type Summary struct {
	Variant    string        `json:"variant"`
	Points     int           `json:"points"`
	Failures   int           `json:"failures"`
	OutputPath string        `json:"output_path"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Runner sweeps the parameter grid for a single variant.
type Runner struct {
	Variant  Variant
	Profiler profiler.Profiler
	Logger   *slog.Logger
}

// NewRunner creates a Runner for the given variant.
func NewRunner(v Variant, prof profiler.Profiler, logger *slog.Logger) *Runner {
	return &Runner{
		Variant:  v,
		Profiler: prof,
		Logger:   logger.With(slog.String("variant", v.Name)),
	}
}

// Sweep visits every grid point in lexicographic (outer, inner) order,
// measures the variant's peak resident memory at each point, and appends
// one value per point to the variant's output log. The log is truncated
// once before the first point; a failure later in the sweep leaves the
// already-appended lines intact.
func (r *Runner) Sweep(ctx context.Context, cfg Config) (*Summary, error) {
	log, err := outlog.Create(r.Variant.OutputPath)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	summary := &Summary{
		Variant:    r.Variant.Name,
		OutputPath: r.Variant.OutputPath,
	}

	r.Logger.Info("starting sweep",
		slog.Int("outer_from", cfg.Outer.From),
		slog.Int("outer_to", cfg.Outer.To),
		slog.Int("inner_from", cfg.Inner.From),
		slog.Int("inner_to", cfg.Inner.To),
		slog.String("output", r.Variant.OutputPath),
	)

	start := time.Now()

	for _, outer := range cfg.Outer.Values() {
		for _, inner := range cfg.Inner.Values() {
			value, err := r.measure(ctx, cfg, outer, inner)
			if err != nil {
				if !cfg.KeepGoing {
					return nil, fmt.Errorf(
						"grid point (%d, %d): %w", outer, inner, err,
					)
				}

				r.Logger.Warn("grid point failed, recording sentinel",
					slog.Int("circuit_size_e", outer),
					slog.Int("poly_count_e", inner),
					slog.String("error", err.Error()),
				)

				summary.Failures++
				value = 0
			}

			if err := log.Append(value); err != nil {
				return nil, err
			}

			summary.Points++
		}
	}

	if err := log.Close(); err != nil {
		return nil, err
	}

	summary.Elapsed = time.Since(start)

	r.Logger.Info("sweep finished",
		slog.Int("points", summary.Points),
		slog.Int("failures", summary.Failures),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// measure runs the variant once for a single grid point and returns its
// peak resident set size.
func (r *Runner) measure(
	ctx context.Context,
	cfg Config,
	outer, inner int,
) (uint64, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if cfg.InputsGenerator != "" && r.Variant.InputsMode != "" {
		if err := GenerateInputs(
			ctx, r.Logger, cfg.InputsGenerator, cfg.InputDir,
			r.Variant.InputsMode, outer, inner,
		); err != nil {
			return 0, fmt.Errorf("prepare inputs: %w", err)
		}
	}

	args := make([]string, 0, len(r.Variant.ExtraArgs)+2)
	args = append(args, r.Variant.ExtraArgs...)
	args = append(args, strconv.Itoa(outer), strconv.Itoa(inner))

	r.Logger.Info("measuring grid point",
		slog.Int("circuit_size_e", outer),
		slog.Int("poly_count_e", inner),
	)

	wallStart := time.Now()

	value, err := r.Profiler.PeakMemory(ctx, r.Variant.BinaryPath, args...)
	if err != nil {
		return 0, err
	}

	r.Logger.Info("grid point measured",
		slog.Int("circuit_size_e", outer),
		slog.Int("poly_count_e", inner),
		slog.Uint64("peak_rss", value),
		slog.Duration("wall_time", time.Since(wallStart)),
	)

	return value, nil
}
