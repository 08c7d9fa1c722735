// Command wasmvalidate validates a WebAssembly binary module file against
// wasmvalid's default feature set and limits, printing either "ok" or the
// ValidationError's kind, byte offset, and message.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/wazvalid/wasmvalid"
	"github.com/wazvalid/wasmvalid/api"
)

func main() {
	os.Exit(doMain(os.Stdout, os.Stderr, os.Args[1:]))
}

// doMain is separated from main for the purpose of unit testing.
func doMain(stdOut, stdErr io.Writer, args []string) int {
	flags := flag.NewFlagSet("wasmvalidate", flag.ContinueOnError)
	flags.SetOutput(stdErr)

	var gc bool
	flags.BoolVar(&gc, "gc", false, "enable the garbage-collection proposal's feature set (CoreFeaturesGC) instead of the default (CoreFeaturesV2).")
	var verbose bool
	flags.BoolVar(&verbose, "v", false, "emit debug-level logging of section and worker-pool progress to stderr.")

	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		fmt.Fprintln(stdErr, "usage: wasmvalidate [-gc] [-v] <path.wasm>")
		return 1
	}
	path := flags.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdErr, "reading %s: %v\n", path, err)
		return 1
	}

	cfg := wasmvalid.NewConfig()
	if gc {
		cfg = cfg.WithFeatures(api.CoreFeaturesGC)
	}
	if verbose {
		logger := logrus.New()
		logger.SetOutput(stdErr)
		logger.SetLevel(logrus.DebugLevel)
		cfg = cfg.WithLogger(logger)
	}

	err = wasmvalid.NewValidator(cfg).Validate(context.Background(), data)
	if err == nil {
		fmt.Fprintln(stdOut, "ok")
		return 0
	}

	var ve *wasmvalid.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintf(stdErr, "%s: offset %#x: %s\n", path, ve.Offset, ve.Error())
		return 1
	}
	fmt.Fprintf(stdErr, "%s: %v\n", path, err)
	return 1
}
