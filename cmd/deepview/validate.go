package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <schema.yaml>",
	Short: "Validate a schema file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(args[0])
		if err != nil {
			return err
		}
		entities := g.Types()
		relations := 0
		for _, t := range entities {
			relations += len(t.Relations)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entities, %d relations\n", args[0], len(entities), relations)
		return nil
	},
}
