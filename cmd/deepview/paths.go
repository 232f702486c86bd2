package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/deepview/query"
	"github.com/syssam/deepview/view"
)

var (
	pathsDepth   int
	pathsExclude []string
	pathsFields  bool
)

var pathsCmd = &cobra.Command{
	Use:   "paths <schema.yaml> <entity>",
	Short: "List the relation paths reachable from an entity",
	Long: `paths enumerates the cycle-free relation paths of an entity, the
same set a handler eager-loads. --depth and --exclude shape the set the
way request parameters would.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadGraph(args[0])
		if err != nil {
			return err
		}
		if pathsFields {
			t, ok := g.Type(args[1])
			if !ok {
				return fmt.Errorf("unknown entity %q", args[1])
			}
			for _, p := range g.FieldPaths(t) {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		}
		reg := view.NewRegistry(g)
		h, err := reg.HandlerFor(args[1], view.ReadOnly)
		if err != nil {
			return err
		}
		params := query.Params{Exclude: pathsExclude}
		if pathsDepth >= 0 {
			params.Depth = &pathsDepth
		}
		plan, err := query.Shape(h, params)
		if err != nil {
			return err
		}
		for _, p := range plan.EagerLoad {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	pathsCmd.Flags().IntVar(&pathsDepth, "depth", -1, "maximum path depth (-1 for the use-case default)")
	pathsCmd.Flags().StringSliceVar(&pathsExclude, "exclude", nil, "relation paths to prune, with their subtrees")
	pathsCmd.Flags().BoolVar(&pathsFields, "fields", false, "list scalar field paths instead of relation paths")
}
