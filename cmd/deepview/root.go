package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/deepview/schema"
)

var rootCmd = &cobra.Command{
	Use:   "deepview",
	Short: "Inspect deepview schema files",
	Long: `deepview works with YAML schema files describing an entity graph.

It validates schemas, lists the relation paths reachable from an
entity and shows the handlers a registry would expose.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(validateCmd, pathsCmd, handlersCmd, versionCmd)
}

// loadGraph reads and validates the schema file shared by every
// subcommand.
func loadGraph(file string) (*schema.Graph, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return schema.FromYAML(data)
}
