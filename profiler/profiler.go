// Package profiler measures the peak resident memory of subprocess
// invocations by wrapping them in an external time(1)-style tool and
// scanning its diagnostic output.
package profiler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Profiler reports the peak resident set size of a single command
// invocation. The unit is whatever the underlying tool emits; values are
// passed through verbatim.
type Profiler interface {
	PeakMemory(ctx context.Context, binary string, args ...string) (uint64, error)
}

// TimeProfiler runs commands under an external time(1) binary and scrapes
// the maximum resident set size from its report.
type TimeProfiler struct {
	// TimePath is the profiling tool to invoke, e.g. /usr/bin/time.
	TimePath string

	// TimeArgs are passed to the tool before the measured command.
	TimeArgs []string

	// Stdout receives the measured program's own stdout. Defaults to
	// discarding it; the metric comes from the diagnostic stream.
	Stdout io.Writer

	Logger *slog.Logger
}

// NewTimeProfiler creates a TimeProfiler for the host platform. GNU time
// reports "Maximum resident set size (kbytes): N" with -v; the BSD tool on
// macOS reports "N  maximum resident set size" with -l.
func NewTimeProfiler(logger *slog.Logger) *TimeProfiler {
	args := []string{"-v"}
	if runtime.GOOS == "darwin" {
		args = []string{"-l"}
	}

	return &TimeProfiler{
		TimePath: "/usr/bin/time",
		TimeArgs: args,
		Logger:   logger,
	}
}

// PeakMemory runs binary with args under the profiling tool, blocking
// until it exits, and returns the reported peak resident set size.
func (p *TimeProfiler) PeakMemory(
	ctx context.Context,
	binary string,
	args ...string,
) (uint64, error) {
	cmdArgs := make([]string, 0, len(p.TimeArgs)+1+len(args))
	cmdArgs = append(cmdArgs, p.TimeArgs...)
	cmdArgs = append(cmdArgs, binary)
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, p.TimePath, cmdArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	cmd.Stdout = p.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = io.Discard
	}

	if p.Logger != nil {
		p.Logger.Debug("profiling command",
			slog.String("tool", p.TimePath),
			slog.String("binary", binary),
			slog.Any("args", args),
		)
	}

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf(
			"run %s under %s: %w\nstderr: %s",
			binary, p.TimePath, err, stderr.String(),
		)
	}

	value, err := ParsePeakMemory(&stderr)
	if err != nil {
		return 0, fmt.Errorf("parse %s report: %w", p.TimePath, err)
	}

	return value, nil
}

// ParsePeakMemory scans a time(1) report for the line mentioning the
// maximum resident set size and returns the first integer token on it.
// Both the GNU layout (label first, value last) and the BSD layout (value
// first, label last) reduce to this rule.
func ParsePeakMemory(r io.Reader) (uint64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if !strings.Contains(
			strings.ToLower(line), "maximum resident set size",
		) {
			continue
		}

		for _, token := range strings.Fields(line) {
			value, err := strconv.ParseUint(token, 10, 64)
			if err == nil {
				return value, nil
			}
		}

		return 0, fmt.Errorf("no numeric token in %q", line)
	}

	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan report: %w", err)
	}

	return 0, fmt.Errorf("no maximum resident set size line found")
}
