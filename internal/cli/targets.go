package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"forge/internal/graph"
)

func newTargetsCommand(root *RootOptions) *cobra.Command {
	var rule string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List targets in the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBuild(root.ManifestPath)
			if err != nil {
				return err
			}

			for _, e := range lb.state.Edges() {
				if rule != "" && e.Rule.Name != rule {
					continue
				}
				for _, out := range e.Outputs {
					status := "clean"
					if out.Status == graph.StatusDirty {
						status = "dirty"
					}
					fmt.Fprintf(os.Stdout, "%s: %s [%s]\n", out.Path, e.Rule.Name, status)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rule, "rule", "", "list only targets produced by this rule")
	return cmd
}
