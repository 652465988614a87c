package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/gitctx"
	"github.com/dshills/vibecheck/internal/output"
	"github.com/dshills/vibecheck/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Review each new commit in the repositories under root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}

		// Repositories differ per event, so no single vector index applies.
		a, err := newApp(cfg, "", newLogger())
		if err != nil {
			fail(err)
			return nil
		}
		defer a.close()

		ctx := cmd.Context()
		events := make(chan watch.Event)
		done := make(chan error, 1)
		go func() {
			done <- watch.New(root, watch.Options{Log: a.log}).Run(ctx, events)
			close(events)
		}()

		for ev := range events {
			ref := ev.Branch
			if ref == "" {
				ref = "HEAD"
			}
			src := gitctx.CommitSource(ev.Repo, ref, buildDiffOpts(cfg))
			report, err := a.engine.Review(ctx, src)
			if err != nil {
				a.log.Error("review failed", zap.String("repo", ev.Repo), zap.Error(err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "== %s (%s)\n", ev.Repo, ref)
			if err := output.WriteReport(report, cfg.Review.Format, ""); err != nil {
				a.log.Warn("writing report", zap.Error(err))
			}
		}
		if err := <-done; err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	addModelFlags(watchCmd)
}
