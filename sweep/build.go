// Package sweep drives parameter-sweep memory benchmarks: it iterates a
// 2-D grid of (circuit_size_exponent, poly_count_exponent) points, runs a
// measured prover variant once per point under a resource profiler, and
// records the peak resident set size per point in a variant-specific log.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// KnownVariants returns the prover variants bundled with the benchmark
// suite.
func KnownVariants() []string {
	return []string{
		"parallel_fri_prover",
		"fold_and_batch_master",
		"distributed_fri_master",
	}
}

// ResolveBinary returns the expected binary path for a variant given the
// prover source directory, following the cargo release layout.
func ResolveBinary(sourceDir, variant string) string {
	return filepath.Join(sourceDir, "target", "release", variant)
}

// DefaultOutputPath returns the conventional log name for a variant.
func DefaultOutputPath(outputDir, variant string) string {
	return filepath.Join(outputDir, "mem_"+variant+".txt")
}

// DefaultInputsMode returns the input-data flavor a known variant reads,
// or empty for variants that need no prepared inputs.
func DefaultInputsMode(variant string) string {
	switch variant {
	case "parallel_fri_prover":
		return "fri_prover"
	case "fold_and_batch_master":
		return "fold_and_batch_master"
	case "distributed_fri_master":
		return "distributed_batched_fri"
	default:
		return ""
	}
}

// Build compiles a prover variant in its source directory and returns the
// binary path.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	sourceDir string,
	variant string,
) (string, error) {
	binPath := ResolveBinary(sourceDir, variant)

	logger.InfoContext(ctx, "building variant",
		slog.String("variant", variant),
		slog.String("source_dir", sourceDir),
	)

	cmd := exec.CommandContext(
		ctx, "cargo", "build", "--release", "--bin", variant,
	)
	cmd.Dir = sourceDir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", variant, err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build %s: binary not found at %s", variant, binPath,
		)
	}

	logger.InfoContext(ctx, "variant built",
		slog.String("variant", variant),
		slog.String("binary", binPath),
	)

	return binPath, nil
}
