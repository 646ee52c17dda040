package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"forge/internal/buildlog"
	"forge/internal/depslog"
	"forge/internal/disk"
	"forge/internal/query"
)

func newQueryCommand(root *RootOptions) *cobra.Command {
	var (
		slowest int
		why     string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Report statistics derived from the build and deps logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBuild(root.ManifestPath)
			if err != nil {
				return err
			}

			d := &disk.Real{}
			bl, err := buildlog.Load(lb.config.BuildLogPath, d)
			if err != nil {
				return wrapExit(ExitInternalError, "loading build log", err)
			}
			dl, err := depslog.Load(lb.config.DepsLogPath, d)
			if err != nil {
				return wrapExit(ExitInternalError, "loading deps log", err)
			}

			store, err := query.Open(".forge_stats.db")
			if err != nil {
				return wrapExit(ExitInternalError, "opening stats database", err)
			}
			defer store.Close()

			if err := store.Ingest(bl, dl); err != nil {
				return wrapExit(ExitInternalError, "ingesting logs", err)
			}

			if why != "" {
				inputs, err := store.WhyDirty(why)
				if err != nil {
					return wrapExit(ExitInternalError, "querying deps", err)
				}
				for _, in := range inputs {
					fmt.Fprintln(os.Stdout, in)
				}
				return nil
			}

			rows, err := store.SlowestEdges(slowest)
			if err != nil {
				return wrapExit(ExitInternalError, "querying build log", err)
			}
			for _, r := range rows {
				fmt.Fprintf(os.Stdout, "%6dms  %s\n", r.DurationMS, r.Output)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&slowest, "slowest", 10, "show the N slowest edges")
	cmd.Flags().StringVar(&why, "why", "", "list the recorded inputs for this output")

	return cmd
}
