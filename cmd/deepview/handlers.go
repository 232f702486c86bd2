package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/deepview/view"
)

var handlersUseCases string

var handlersCmd = &cobra.Command{
	Use:   "handlers <schema.yaml>",
	Short: "List the handlers a registry would expose",
	Long: `handlers prints one line per (use case, entity) pair with the
handler key and the number of traversal paths it serves. Use cases are
read from --use-cases, defaulting to the built-in read-write and
read-only pair.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(args[0])
		if err != nil {
			return err
		}
		useCases := []view.UseCase{view.ReadWrite, view.ReadOnly}
		if handlersUseCases != "" {
			data, err := os.ReadFile(handlersUseCases)
			if err != nil {
				return fmt.Errorf("reading use cases: %w", err)
			}
			useCases, err = view.UseCasesFromYAML(data)
			if err != nil {
				return err
			}
		}
		reg := view.NewRegistry(g)
		for _, uc := range useCases {
			for _, h := range reg.RegisterAll(uc) {
				mode := "ro"
				if h.AllowWrite() {
					mode = "rw"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s depth=%d paths=%d\n",
					view.Key(uc, h.Entity().Name), mode, h.DefaultDepth(), len(h.Paths()))
			}
		}
		return nil
	},
}

func init() {
	handlersCmd.Flags().StringVar(&handlersUseCases, "use-cases", "", "YAML file declaring the use cases")
}
