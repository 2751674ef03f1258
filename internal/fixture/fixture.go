// Package fixture reads and writes the JSON documents the harness works
// from: the representative dataset and the expected-output snapshot.
package fixture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"parity/internal/core"
)

// ErrMalformed marks a file that was read but is not the expected JSON shape.
var ErrMalformed = errors.New("malformed document")

// LoadDataset reads and validates a dataset fixture.
func LoadDataset(path string) (core.Dataset, error) {
	var ds core.Dataset
	if err := decodeFile(path, &ds); err != nil {
		return core.Dataset{}, fmt.Errorf("load dataset %s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return core.Dataset{}, fmt.Errorf("load dataset %s: %w", path, err)
	}
	return ds, nil
}

// LoadSnapshot reads an expected-output snapshot.
func LoadSnapshot(path string) (core.Output, error) {
	var out core.Output
	if err := decodeFile(path, &out); err != nil {
		return core.Output{}, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return out.Normalize(), nil
}

// LoadTree reads any JSON document as a generic tree, keeping keys that a
// typed decode would drop.
func LoadTree(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", path, err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("load tree %s: %w: %v", path, ErrMalformed, err)
	}
	return tree, nil
}

// WriteSnapshot writes out as 2-space indented JSON with a trailing newline,
// creating parent directories as needed.
func WriteSnapshot(path string, out core.Output) error {
	raw, err := Marshal(out)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("write snapshot %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// Marshal renders out in snapshot form.
func Marshal(out core.Output) ([]byte, error) {
	raw, err := json.MarshalIndent(out.Normalize(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

// DecodeDataset reads a single dataset document from r and validates it.
func DecodeDataset(r io.Reader) (core.Dataset, error) {
	var ds core.Dataset
	if err := decode(r, &ds); err != nil {
		return core.Dataset{}, err
	}
	if err := ds.Validate(); err != nil {
		return core.Dataset{}, err
	}
	return ds, nil
}

func decodeFile(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return decode(bytes.NewReader(raw), v)
}

func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after document", ErrMalformed)
	}
	return nil
}
