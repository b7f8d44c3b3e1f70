// Package report formats collected sweep logs into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cvisser/memsweep/outlog"
	"github.com/cvisser/memsweep/sweep"
)

// VariantLog pairs a variant name with the values read from its output
// log, in grid-traversal order.
type VariantLog struct {
	Variant string   `json:"variant"`
	Values  []uint64 `json:"peak_rss"`
}

// Collect reads each variant's output log from disk.
func Collect(variants []sweep.Variant) ([]VariantLog, error) {
	logs := make([]VariantLog, 0, len(variants))

	for _, v := range variants {
		values, err := outlog.Read(v.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", v.Name, err)
		}

		logs = append(logs, VariantLog{Variant: v.Name, Values: values})
	}

	return logs, nil
}

// Generate writes a markdown table with one row per grid point and one
// column per variant. Values are reported verbatim, in whatever unit the
// profiler emitted.
func Generate(w io.Writer, outer, inner sweep.Range, logs []VariantLog) error {
	if len(logs) == 0 {
		return fmt.Errorf("no logs to report")
	}

	points := outer.Len() * inner.Len()

	fmt.Fprintln(w, "## Peak resident set size")
	fmt.Fprintln(w)

	if complete(logs, points) {
		fmt.Fprintf(w, "Logs: **complete** (%d grid points)\n", points)
	} else {
		fmt.Fprintln(w, "Logs: **INCOMPLETE**")

		for _, l := range logs {
			fmt.Fprintf(w, "  - %s: %d of %d lines\n",
				l.Variant, len(l.Values), points)
		}
	}

	fmt.Fprintln(w)

	// Table header.
	fmt.Fprint(w, "| circuit_size_e | poly_count_e |")
	for _, l := range logs {
		fmt.Fprintf(w, " %s |", l.Variant)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "|----------------|--------------|")
	for range logs {
		fmt.Fprint(w, "---|")
	}
	fmt.Fprintln(w)

	k := 0

	for _, o := range outer.Values() {
		for _, i := range inner.Values() {
			fmt.Fprintf(w, "| %d | %d |", o, i)

			for _, l := range logs {
				fmt.Fprintf(w, " %s |", valueAt(l.Values, k))
			}

			fmt.Fprintln(w)
			k++
		}
	}

	return nil
}

// GenerateJSON writes the collected logs as JSON to w.
func GenerateJSON(w io.Writer, logs []VariantLog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(logs)
}

func complete(logs []VariantLog, points int) bool {
	for _, l := range logs {
		if len(l.Values) != points {
			return false
		}
	}

	return true
}

func valueAt(values []uint64, k int) string {
	if k >= len(values) {
		return "-"
	}

	return strconv.FormatUint(values[k], 10)
}
