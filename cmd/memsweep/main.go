// Package main provides the CLI entry point for memsweep, a parameter-sweep
// memory benchmark driver for external prover binaries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvisser/memsweep/config"
	"github.com/cvisser/memsweep/profiler"
	"github.com/cvisser/memsweep/report"
	"github.com/cvisser/memsweep/sweep"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "memsweep",
		Short: "Parameter-sweep memory benchmark driver for prover binaries",
		Long: `Memsweep sweeps a 2-D grid of (circuit_size_exponent, poly_count_exponent)
parameters, runs a measured prover variant once per grid point under a
resource profiler, and records the peak resident set size of each run as
one line of a variant-specific output log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newReportCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		sweepFile       string
		variants        []string
		circuitFrom     int
		circuitTo       int
		polyFrom        int
		polyTo          int
		sourceDir       string
		outputDir       string
		skipBuild       bool
		keepGoing       bool
		timeout         time.Duration
		timePath        string
		inputsGenerator string
		inputDir        string
		outputJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep the parameter grid for the active variants",
		Long: `Run one full sweep per active variant: every grid point in ascending
(circuit_size_exponent, poly_count_exponent) order, one subprocess at a
time, appending one peak-RSS value per point to the variant's log. The
log is truncated once at sweep start; a failed grid point aborts the
sweep unless --keep-going records a sentinel 0 instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveSweep(cmd, sweepFile, variants, gridOverride{
				circuitFrom: circuitFrom,
				circuitTo:   circuitTo,
				polyFrom:    polyFrom,
				polyTo:      polyTo,
			})
			if err != nil {
				return err
			}

			return runSweep(cmd.Context(), logger, cfg, runOptions{
				sourceDir:       sourceDir,
				outputDir:       outputDir,
				skipBuild:       skipBuild,
				keepGoing:       keepGoing,
				timeout:         timeout,
				timePath:        timePath,
				inputsGenerator: inputsGenerator,
				inputDir:        inputDir,
				outputJSON:      outputJSON,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sweepFile, "sweep-file", "",
		"Path to an HCL sweep file (grid and variant blocks)")
	flags.StringSliceVar(&variants, "variants", nil,
		"Variants to sweep (e.g. parallel_fri_prover,fold_and_batch_master)")
	flags.IntVar(&circuitFrom, "circuit-from", 24,
		"Lowest circuit-size exponent")
	flags.IntVar(&circuitTo, "circuit-to", 24,
		"Highest circuit-size exponent")
	flags.IntVar(&polyFrom, "poly-from", 0,
		"Lowest poly-count exponent")
	flags.IntVar(&polyTo, "poly-to", 5,
		"Highest poly-count exponent")
	flags.StringVar(&sourceDir, "source-dir", ".",
		"Prover source directory (cargo workspace)")
	flags.StringVar(&outputDir, "output-dir", ".",
		"Directory for output logs")
	flags.BoolVar(&skipBuild, "skip-build", false,
		"Skip building variant binaries")
	flags.BoolVar(&keepGoing, "keep-going", false,
		"Record sentinel 0 for failed grid points instead of aborting")
	flags.DurationVar(&timeout, "timeout", 0,
		"Per-invocation timeout (0 = none)")
	flags.StringVar(&timePath, "time-path", "",
		"Profiling tool to wrap invocations with (default /usr/bin/time)")
	flags.StringVar(&inputsGenerator, "inputs-generator", "",
		"Binary that generates per-grid-point input files (empty = skip)")
	flags.StringVar(&inputDir, "input-dir", "benches/input_data",
		"Root of the input-file layout the variants read")
	flags.BoolVar(&outputJSON, "json", false,
		"Print sweep summaries as JSON")

	return cmd
}

func newReportCmd(logger *slog.Logger) *cobra.Command {
	var (
		sweepFile  string
		variants   []string
		outputDir  string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Tabulate collected sweep logs across variants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveSweep(cmd, sweepFile, variants, gridOverride{})
			if err != nil {
				return err
			}

			for i := range cfg.Variants {
				if cfg.Variants[i].OutputPath == "" {
					cfg.Variants[i].OutputPath = sweep.DefaultOutputPath(
						outputDir, cfg.Variants[i].Name,
					)
				}
			}

			logs, err := report.Collect(cfg.Variants)
			if err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "collected logs",
				slog.Int("variants", len(logs)),
			)

			if outputJSON {
				return report.GenerateJSON(os.Stdout, logs)
			}

			return report.Generate(os.Stdout, cfg.Outer, cfg.Inner, logs)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sweepFile, "sweep-file", "",
		"Path to an HCL sweep file (grid and variant blocks)")
	flags.StringSliceVar(&variants, "variants", nil,
		"Variants to include in the report")
	flags.StringVar(&outputDir, "output-dir", ".",
		"Directory the output logs were written to")
	flags.BoolVar(&outputJSON, "json", false,
		"Output raw log values as JSON instead of a table")

	return cmd
}

type gridOverride struct {
	circuitFrom int
	circuitTo   int
	polyFrom    int
	polyTo      int
}

// resolveSweep merges the sweep file, grid flag overrides, and the
// variant selection into one configuration. Flags win over the file;
// the file wins over defaults.
func resolveSweep(
	cmd *cobra.Command,
	sweepFile string,
	variants []string,
	grid gridOverride,
) (*config.Sweep, error) {
	cfg := config.Default()

	if sweepFile != "" {
		loaded, err := config.Load(sweepFile)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("circuit-from") {
		cfg.Outer.From = grid.circuitFrom
	}
	if flags.Changed("circuit-to") {
		cfg.Outer.To = grid.circuitTo
	}
	if flags.Changed("poly-from") {
		cfg.Inner.From = grid.polyFrom
	}
	if flags.Changed("poly-to") {
		cfg.Inner.To = grid.polyTo
	}

	if cfg.Outer.Len() == 0 || cfg.Inner.Len() == 0 {
		return nil, fmt.Errorf(
			"empty grid: circuit [%d, %d], poly [%d, %d]",
			cfg.Outer.From, cfg.Outer.To, cfg.Inner.From, cfg.Inner.To,
		)
	}

	if len(variants) > 0 {
		cfg.Variants = selectVariants(cfg.Variants, variants)
	}

	if len(cfg.Variants) == 0 {
		// The standing configuration measures a single active variant.
		cfg.Variants = []sweep.Variant{{
			Name:       "parallel_fri_prover",
			InputsMode: sweep.DefaultInputsMode("parallel_fri_prover"),
		}}
	}

	return cfg, nil
}

// selectVariants keeps the configured variants named on the command line,
// in command-line order, creating bare entries for names the sweep file
// does not mention.
func selectVariants(
	configured []sweep.Variant,
	names []string,
) []sweep.Variant {
	byName := make(map[string]sweep.Variant, len(configured))
	for _, v := range configured {
		byName[v.Name] = v
	}

	selected := make([]sweep.Variant, 0, len(names))

	for _, name := range names {
		if v, ok := byName[name]; ok {
			selected = append(selected, v)

			continue
		}

		selected = append(selected, sweep.Variant{
			Name:       name,
			InputsMode: sweep.DefaultInputsMode(name),
		})
	}

	return selected
}

type runOptions struct {
	sourceDir       string
	outputDir       string
	skipBuild       bool
	keepGoing       bool
	timeout         time.Duration
	timePath        string
	inputsGenerator string
	inputDir        string
	outputJSON      bool
}

func runSweep(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Sweep,
	opts runOptions,
) error {
	logger.InfoContext(ctx, "starting sweeps",
		slog.Int("circuit_from", cfg.Outer.From),
		slog.Int("circuit_to", cfg.Outer.To),
		slog.Int("poly_from", cfg.Inner.From),
		slog.Int("poly_to", cfg.Inner.To),
		slog.Int("variants", len(cfg.Variants)),
	)

	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Resolve binaries, building where no explicit path was configured.
	for i := range cfg.Variants {
		v := &cfg.Variants[i]

		if v.BinaryPath == "" {
			if opts.skipBuild {
				v.BinaryPath = sweep.ResolveBinary(opts.sourceDir, v.Name)
			} else {
				binPath, err := sweep.Build(ctx, logger, opts.sourceDir, v.Name)
				if err != nil {
					return err
				}

				v.BinaryPath = binPath
			}
		}

		if v.OutputPath == "" {
			v.OutputPath = sweep.DefaultOutputPath(opts.outputDir, v.Name)
		}
	}

	prof := profiler.NewTimeProfiler(logger)
	if opts.timePath != "" {
		prof.TimePath = opts.timePath
	}

	// One full sweep per variant, strictly sequential: concurrent
	// invocations would compete for memory and corrupt the metric.
	summaries := make([]sweep.Summary, 0, len(cfg.Variants))

	for _, v := range cfg.Variants {
		runner := sweep.NewRunner(v, prof, logger)

		summary, err := runner.Sweep(ctx, sweep.Config{
			Outer:           cfg.Outer,
			Inner:           cfg.Inner,
			Timeout:         opts.timeout,
			KeepGoing:       opts.keepGoing,
			InputsGenerator: opts.inputsGenerator,
			InputDir:        opts.inputDir,
		})
		if err != nil {
			return fmt.Errorf("sweep %s: %w", v.Name, err)
		}

		summaries = append(summaries, *summary)
	}

	if opts.outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(summaries); err != nil {
			return fmt.Errorf("encode summaries: %w", err)
		}
	}

	logger.InfoContext(ctx, "all sweeps complete",
		slog.Int("variants", len(summaries)),
	)

	return nil
}
