package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cvisser/memsweep/outlog"
)

// fakeProfiler derives a distinct value from each grid point so tests can
// check line-to-point correspondence, and can be told to fail at one
// point.
type fakeProfiler struct {
	failAt []int // nil, or the [outer, inner] point to fail at
	calls  int
}

func (f *fakeProfiler) PeakMemory(
	_ context.Context, _ string, args ...string,
) (uint64, error) {
	f.calls++

	outer, err := strconv.Atoi(args[len(args)-2])
	if err != nil {
		return 0, err
	}

	inner, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return 0, err
	}

	if f.failAt != nil && outer == f.failAt[0] && inner == f.failAt[1] {
		return 0, errors.New("prover exited with status 1")
	}

	return uint64(outer*1000 + inner), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVariant(t *testing.T) Variant {
	t.Helper()

	return Variant{
		Name:       "parallel_fri_prover",
		BinaryPath: "parallel_fri_prover",
		OutputPath: filepath.Join(t.TempDir(), "mem_parallel_fri_prover.txt"),
	}
}

func TestSweepGridSize(t *testing.T) {
	variant := testVariant(t)
	runner := NewRunner(variant, &fakeProfiler{}, testLogger())

	summary, err := runner.Sweep(context.Background(), Config{
		Outer: Range{From: 24, To: 24},
		Inner: Range{From: 0, To: 5},
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.Points != 6 {
		t.Errorf("points = %d, want 6", summary.Points)
	}
	if summary.Failures != 0 {
		t.Errorf("failures = %d, want 0", summary.Failures)
	}

	values, err := outlog.Read(variant.OutputPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	if len(values) != 6 {
		t.Fatalf("line count = %d, want 6", len(values))
	}
}

func TestSweepLexicographicOrder(t *testing.T) {
	variant := testVariant(t)
	runner := NewRunner(variant, &fakeProfiler{}, testLogger())

	_, err := runner.Sweep(context.Background(), Config{
		Outer: Range{From: 2, To: 3},
		Inner: Range{From: 0, To: 1},
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	values, err := outlog.Read(variant.OutputPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	want := []uint64{2000, 2001, 3000, 3001}

	if len(values) != len(want) {
		t.Fatalf("line count = %d, want %d", len(values), len(want))
	}

	for i, w := range want {
		if values[i] != w {
			t.Errorf("line %d = %d, want %d", i, values[i], w)
		}
	}
}

func TestSweepTruncatesStaleLog(t *testing.T) {
	variant := testVariant(t)

	stale := strings.Repeat("99999\n", 100)
	if err := os.WriteFile(variant.OutputPath, []byte(stale), 0o644); err != nil {
		t.Fatalf("write stale log: %v", err)
	}

	runner := NewRunner(variant, &fakeProfiler{}, testLogger())

	_, err := runner.Sweep(context.Background(), Config{
		Outer: Range{From: 24, To: 24},
		Inner: Range{From: 0, To: 5},
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	values, err := outlog.Read(variant.OutputPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	if len(values) != 6 {
		t.Errorf("line count = %d, want 6 (stale lines not discarded)",
			len(values))
	}
}

func TestSweepAbortsOnFailure(t *testing.T) {
	variant := testVariant(t)
	prof := &fakeProfiler{failAt: []int{24, 3}}
	runner := NewRunner(variant, prof, testLogger())

	_, err := runner.Sweep(context.Background(), Config{
		Outer: Range{From: 24, To: 24},
		Inner: Range{From: 0, To: 5},
	})
	if err == nil {
		t.Fatal("expected sweep to abort on a failed grid point")
	}

	if !strings.Contains(err.Error(), "(24, 3)") {
		t.Errorf("error %q does not name the failing grid point", err)
	}

	// Lines appended before the failure survive.
	values, readErr := outlog.Read(variant.OutputPath)
	if readErr != nil {
		t.Fatalf("read log: %v", readErr)
	}

	if len(values) != 3 {
		t.Fatalf("line count = %d, want 3", len(values))
	}

	for i, want := range []uint64{24000, 24001, 24002} {
		if values[i] != want {
			t.Errorf("line %d = %d, want %d", i, values[i], want)
		}
	}
}

func TestSweepKeepGoingRecordsSentinel(t *testing.T) {
	variant := testVariant(t)
	prof := &fakeProfiler{failAt: []int{24, 3}}
	runner := NewRunner(variant, prof, testLogger())

	summary, err := runner.Sweep(context.Background(), Config{
		Outer:     Range{From: 24, To: 24},
		Inner:     Range{From: 0, To: 5},
		KeepGoing: true,
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if summary.Failures != 1 {
		t.Errorf("failures = %d, want 1", summary.Failures)
	}

	values, err := outlog.Read(variant.OutputPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	if len(values) != 6 {
		t.Fatalf("line count = %d, want 6", len(values))
	}

	// The failed point keeps its position, recorded as 0.
	if values[3] != 0 {
		t.Errorf("line 3 = %d, want sentinel 0", values[3])
	}
	if values[4] != 24004 {
		t.Errorf("line 4 = %d, want 24004", values[4])
	}
}

func TestSweepRerunSameLineCount(t *testing.T) {
	variant := testVariant(t)
	runner := NewRunner(variant, &fakeProfiler{}, testLogger())

	cfg := Config{
		Outer: Range{From: 24, To: 24},
		Inner: Range{From: 0, To: 5},
	}

	for run := 0; run < 2; run++ {
		if _, err := runner.Sweep(context.Background(), cfg); err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}

		values, err := outlog.Read(variant.OutputPath)
		if err != nil {
			t.Fatalf("read log after run %d: %v", run, err)
		}

		if len(values) != 6 {
			t.Errorf("run %d: line count = %d, want 6", run, len(values))
		}
	}
}

func TestRangeLen(t *testing.T) {
	tests := []struct {
		r    Range
		want int
	}{
		{Range{From: 24, To: 24}, 1},
		{Range{From: 0, To: 5}, 6},
		{Range{From: 5, To: 0}, 0},
	}

	for _, tt := range tests {
		if got := tt.r.Len(); got != tt.want {
			t.Errorf("Len(%+v) = %d, want %d", tt.r, got, tt.want)
		}
	}
}

func TestRangeValuesAscending(t *testing.T) {
	values := Range{From: 21, To: 25}.Values()

	want := []int{21, 22, 23, 24, 25}
	if len(values) != len(want) {
		t.Fatalf("len = %d, want %d", len(values), len(want))
	}

	for i, w := range want {
		if values[i] != w {
			t.Errorf("values[%d] = %d, want %d", i, values[i], w)
		}
	}
}

func TestResolveBinary(t *testing.T) {
	got := ResolveBinary("fri", "parallel_fri_prover")
	want := filepath.Join("fri", "target", "release", "parallel_fri_prover")

	if got != want {
		t.Errorf("ResolveBinary = %q, want %q", got, want)
	}
}

func TestInputFilePath(t *testing.T) {
	got := InputFilePath("benches/input_data", "fri_prover", 24, 3)
	want := filepath.Join(
		"benches/input_data", "fri_prover", "circuit_e_24_machine_e_3",
	)

	if got != want {
		t.Errorf("InputFilePath = %q, want %q", got, want)
	}
}
