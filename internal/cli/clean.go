package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"forge/internal/buildlog"
	"forge/internal/clean"
	"forge/internal/disk"
)

func newCleanCommand(root *RootOptions) *cobra.Command {
	var (
		rules            []string
		dead             bool
		dryRun           bool
		includeGenerator bool
	)

	cmd := &cobra.Command{
		Use:   "clean [targets...]",
		Short: "Remove generated outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBuild(root.ManifestPath)
			if err != nil {
				return err
			}

			opts := clean.Options{DryRun: dryRun, IncludeGenerator: includeGenerator}
			switch {
			case dead:
				opts.Mode = clean.ModeDead
			case len(rules) > 0:
				opts.Mode = clean.ModeRules
				opts.RuleNames = map[string]bool{}
				for _, r := range rules {
					opts.RuleNames[r] = true
				}
			case len(args) > 0:
				opts.Mode = clean.ModeTargets
				nodes, err := resolveTargets(lb.state, args)
				if err != nil {
					return err
				}
				opts.Targets = nodes
			default:
				opts.Mode = clean.ModeAll
			}

			d := &disk.Real{}
			var bl *buildlog.Log
			if dead {
				bl, err = buildlog.Load(lb.config.BuildLogPath, d)
				if err != nil {
					return wrapExit(ExitInternalError, "loading build log", err)
				}
			}

			c := clean.New(lb.state, d, bl)
			res := c.Clean(opts)

			verb := "removed"
			if dryRun {
				verb = "would remove"
			}
			fmt.Fprintf(os.Stdout, "forge: %s %d file(s)\n", verb, len(res.Removed))
			if root.Verbose {
				fmt.Fprintln(os.Stdout, strings.Join(res.Removed, "\n"))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&rules, "rule", "r", nil, "clean only outputs of these rules")
	cmd.Flags().BoolVar(&dead, "dead", false, "remove build-log outputs with no live node")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report without removing")
	cmd.Flags().BoolVarP(&includeGenerator, "generator", "g", false, "also remove generator-rule outputs")

	return cmd
}
