// Package outlog manages the append-only result logs produced by a sweep.
// Each log belongs to exactly one measured variant and holds one decimal
// value per line, in grid-traversal order.
package outlog

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
)

// Log is a single-writer, append-only result file.
type Log struct {
	path string
	f    *os.File
}

// Create opens the log at path, discarding any previous contents. The
// truncation happens exactly once, here; all later writes go through
// Append.
func Create(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create log %s: %w", path, err)
	}

	return &Log{path: path, f: f}, nil
}

// Append writes one value as a decimal line. Writes go straight to the
// file, so every line already appended survives a crash later in the
// sweep.
func (l *Log) Append(value uint64) error {
	if _, err := fmt.Fprintf(l.f, "%d\n", value); err != nil {
		return fmt.Errorf("append to log %s: %w", l.path, err)
	}

	return nil
}

// Path returns the file path the log writes to.
func (l *Log) Path() string {
	return l.path
}

// Close releases the underlying file.
func (l *Log) Close() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("close log %s: %w", l.path, err)
	}

	return nil
}

// Read returns the values recorded in the log at path, one per line.
func Read(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	var values []uint64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		value, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf(
				"log %s line %d: parse %q: %w",
				path, len(values)+1, line, err,
			)
		}

		values = append(values, value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log %s: %w", path, err)
	}

	return values, nil
}
