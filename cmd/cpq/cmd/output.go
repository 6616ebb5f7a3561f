package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/yaml.v3"

	"github.com/solatis/cpq/internal/configurator"
)

var outputFormat string

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format (json, yaml)")
}

// writeOutput renders v in the --output format.
func writeOutput(w io.Writer, v any) error {
	format, err := configurator.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	switch format {
	case configurator.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
}

// dumpState writes the full session snapshot to stderr under --debug.
func dumpState(label string, st configurator.State) {
	if !debug {
		return
	}
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	fmt.Fprintf(os.Stderr, "--- %s (phase %s)\n", label, st.Phase())
	cfg.Fdump(os.Stderr, st)
}
