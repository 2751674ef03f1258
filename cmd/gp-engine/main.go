// Command gp-engine runs one engine as a candidate process: it reads a dataset
// document from stdin and writes the output document to stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"parity/internal/cli"
)

func main() {
	name := flag.String("engine", "streaming", "engine to run")
	flag.Parse()

	if err := cli.ServeEngine(*name, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gp-engine: %v\n", err)
		os.Exit(1)
	}
}
