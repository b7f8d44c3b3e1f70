package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// InputFilePath returns where the prover variants expect the prepared
// input vector for one grid point.
func InputFilePath(inputDir, mode string, outer, inner int) string {
	return filepath.Join(
		inputDir, mode,
		fmt.Sprintf("circuit_e_%d_machine_e_%d", outer, inner),
	)
}

// GenerateInputs runs the inputs-generator binary for one grid point,
// redirecting its stdout into the input file the variant reads. An
// existing input file is reused as-is; the generated vectors are random
// either way, only their shape matters to the measurement.
func GenerateInputs(
	ctx context.Context,
	logger *slog.Logger,
	generatorPath, inputDir, mode string,
	outer, inner int,
) error {
	path := InputFilePath(inputDir, mode, outer, inner)

	if _, err := os.Stat(path); err == nil {
		logger.Debug("input file exists, skipping generation",
			slog.String("path", path),
		)

		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create input file %s: %w", path, err)
	}
	defer out.Close()

	cmd := exec.CommandContext(
		ctx, generatorPath,
		mode, fmt.Sprintf("%d", outer), fmt.Sprintf("%d", inner),
	)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr

	logger.Info("generating inputs",
		slog.String("mode", mode),
		slog.Int("circuit_size_e", outer),
		slog.Int("poly_count_e", inner),
		slog.String("path", path),
	)

	if err := cmd.Run(); err != nil {
		// Drop the partial file so a later run regenerates it.
		out.Close()
		os.Remove(path)

		return fmt.Errorf("run inputs generator: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close input file %s: %w", path, err)
	}

	return nil
}
