// Package config loads declarative sweep files written in HCL. A sweep
// file holds an optional grid block with the two exponent ranges and any
// number of variant blocks selecting the measured programs.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/cvisser/memsweep/sweep"
)

// fileSchema is the top-level structure of a sweep file for decoding.
type fileSchema struct {
	Grid     *gridBlock      `hcl:"grid,block"`
	Variants []*variantBlock `hcl:"variant,block"`
}

// gridBlock holds the exponent ranges, each written as a [from, to] pair.
type gridBlock struct {
	CircuitSizeExponents hcl.Expression `hcl:"circuit_size_exponents,optional"`
	PolyCountExponents   hcl.Expression `hcl:"poly_count_exponents,optional"`
}

type variantBlock struct {
	Name       string   `hcl:"name,label"`
	Binary     string   `hcl:"binary,optional"`
	Output     string   `hcl:"output,optional"`
	Args       []string `hcl:"args,optional"`
	InputsMode string   `hcl:"inputs_mode,optional"`
	Enabled    *bool    `hcl:"enabled,optional"`
}

// Sweep is the resolved configuration for one harness run. Variant binary
// and output paths may still be empty here; the CLI fills them in from
// its directory flags.
type Sweep struct {
	Outer    sweep.Range
	Inner    sweep.Range
	Variants []sweep.Variant
}

// Default returns the standing grid configuration of the benchmark suite:
// a single circuit-size exponent of 24 swept over poly-count exponents
// 0 through 5.
func Default() *Sweep {
	return &Sweep{
		Outer: sweep.Range{From: 24, To: 24},
		Inner: sweep.Range{From: 0, To: 5},
	}
}

// Load parses the sweep file at path and resolves it against the
// defaults. Disabled variants are dropped; the rest keep file order.
func Load(path string) (*Sweep, error) {
	parser := hclparse.NewParser()

	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse sweep file %s: %w", path, diags)
	}

	return decode(path, hclFile)
}

func decode(path string, hclFile *hcl.File) (*Sweep, error) {
	var parsed fileSchema

	diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("decode sweep file %s: %w", path, diags)
	}

	resolved := Default()

	if parsed.Grid != nil {
		if parsed.Grid.CircuitSizeExponents != nil {
			r, err := rangeFromExpr(parsed.Grid.CircuitSizeExponents)
			if err != nil {
				return nil, fmt.Errorf("grid.circuit_size_exponents: %w", err)
			}

			resolved.Outer = r
		}

		if parsed.Grid.PolyCountExponents != nil {
			r, err := rangeFromExpr(parsed.Grid.PolyCountExponents)
			if err != nil {
				return nil, fmt.Errorf("grid.poly_count_exponents: %w", err)
			}

			resolved.Inner = r
		}
	}

	seen := make(map[string]bool, len(parsed.Variants))

	for _, vb := range parsed.Variants {
		if vb.Name == "" {
			return nil, fmt.Errorf("sweep file %s: variant with empty name", path)
		}

		if seen[vb.Name] {
			return nil, fmt.Errorf(
				"sweep file %s: duplicate variant %q", path, vb.Name,
			)
		}

		seen[vb.Name] = true

		if vb.Enabled != nil && !*vb.Enabled {
			continue
		}

		variant := sweep.Variant{
			Name:       vb.Name,
			BinaryPath: vb.Binary,
			ExtraArgs:  vb.Args,
			OutputPath: vb.Output,
			InputsMode: vb.InputsMode,
		}

		if variant.InputsMode == "" {
			variant.InputsMode = sweep.DefaultInputsMode(vb.Name)
		}

		resolved.Variants = append(resolved.Variants, variant)
	}

	return resolved, nil
}

// rangeFromExpr evaluates a [from, to] expression into a closed range.
func rangeFromExpr(expr hcl.Expression) (sweep.Range, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return sweep.Range{}, fmt.Errorf("evaluate: %w", diags)
	}

	ty := val.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return sweep.Range{}, fmt.Errorf(
			"want a [from, to] pair, got %s", ty.FriendlyName(),
		)
	}

	elems := val.AsValueSlice()
	if len(elems) != 2 {
		return sweep.Range{}, fmt.Errorf(
			"want exactly 2 elements, got %d", len(elems),
		)
	}

	var from, to int

	if err := gocty.FromCtyValue(elems[0], &from); err != nil {
		return sweep.Range{}, fmt.Errorf("from: %w", err)
	}

	if err := gocty.FromCtyValue(elems[1], &to); err != nil {
		return sweep.Range{}, fmt.Errorf("to: %w", err)
	}

	if to < from {
		return sweep.Range{}, fmt.Errorf("empty range [%d, %d]", from, to)
	}

	return sweep.Range{From: from, To: to}, nil
}
