package cli

import (
	"fmt"
	"io"

	"parity/internal/engine"
	"parity/internal/fixture"
)

// ServeEngine runs the named engine over the dataset read from r and writes
// exactly one output document to w.
func ServeEngine(name string, r io.Reader, w io.Writer) error {
	e, err := engine.Lookup(name)
	if err != nil {
		return err
	}
	ds, err := fixture.DecodeDataset(r)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	out, err := e.Compute(ds)
	if err != nil {
		return fmt.Errorf("compute %s: %w", e.Name(), err)
	}
	raw, err := fixture.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = w.Write(raw)
	return err
}
