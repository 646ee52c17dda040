package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"forge/internal/buildlog"
	"forge/internal/builder"
	"forge/internal/depslog"
	"forge/internal/disk"
	"forge/internal/status"
	"forge/internal/subprocess"
)

func newBuildCommand(root *RootOptions) *cobra.Command {
	var (
		parallelism     int
		failuresAllowed int
		dryRun          bool
	)

	cmd := &cobra.Command{
		Use:   "build [targets...]",
		Short: "Build the given targets, or the manifest's defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			lb, err := loadBuild(root.ManifestPath)
			if err != nil {
				return err
			}

			cfg := builder.Config{
				Parallelism:     lb.config.Parallelism,
				FailuresAllowed: lb.config.FailuresAllowed,
				DryRun:          dryRun,
				MaxLoadAverage:  lb.config.MaxLoadAverage,
			}
			if cmd.Flags().Changed("jobs") {
				cfg.Parallelism = parallelism
			}
			if cmd.Flags().Changed("keep-going") {
				cfg.FailuresAllowed = failuresAllowed
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

			// Mirrors ninja's OpenForWrite: recompact right after Load,
			// before anything is appended, and never under -n (a dry run
			// must not touch either log on disk).
			if !dryRun {
				if bl.NeedsRecompaction() {
					isDead := func(path string) bool { return isPathDead(lb.state, d, path) }
					if err := buildlog.Recompact(lb.config.BuildLogPath, bl, isDead); err != nil {
						return wrapExit(ExitInternalError, "recompacting build log", err)
					}
				}
				if dl.NeedsRecompaction() {
					isLive := func(path string) bool { return !isPathDead(lb.state, d, path) }
					if err := depslog.Recompact(lb.config.DepsLogPath, dl, isLive); err != nil {
						return wrapExit(ExitInternalError, "recompacting deps log", err)
					}
				}
			}

			var runner subprocess.Runner
			if dryRun {
				runner = subprocess.NewDryRun()
			} else {
				runner = subprocess.NewReal(cfg.Parallelism, nil)
			}

			printer := status.New(os.Stdout, terminalWidth())
			b := builder.New(lb.state, d, bl, dl, cfg, runner, printer)

			targets, err := resolveTargets(lb.state, args)
			if err != nil {
				return err
			}
			for _, t := range targets {
				if _, err := b.AddTargetName(t.Path); err != nil {
					return wrapExit(ExitInvalidInvocation, "", err)
				}
			}

			if b.AlreadyUpToDate() {
				fmt.Fprintln(os.Stdout, "forge: nothing to do")
				return nil
			}

			if err := b.Build(cmd.Context()); err != nil {
				return wrapExit(ExitBuildFailure, "build failed", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallelism, "jobs", "j", 1, "number of commands to run in parallel")
	cmd.Flags().IntVarP(&failuresAllowed, "keep-going", "k", 1, "number of failures to tolerate before stopping (-1 for unlimited)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report work without running commands")

	return cmd
}

func terminalWidth() int {
	if os.Getenv("TERM") == "dumb" {
		return 0
	}
	return 80
}
