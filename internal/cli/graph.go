package cli

import (
	"github.com/spf13/cobra"

	"forge/internal/graphviz"
)

func newGraphCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [targets...]",
		Short: "Emit a Graphviz DOT rendering of the build graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBuild(root.ManifestPath)
			if err != nil {
				return err
			}
			nodes, err := resolveTargets(lb.state, args)
			if err != nil {
				return err
			}
			return graphviz.Write(cmd.OutOrStdout(), lb.state, nodes)
		},
	}
}
