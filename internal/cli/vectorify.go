package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/vectorindex"
)

var vectorifyCmd = &cobra.Command{
	Use:     "vectorify [path]",
	Aliases: []string{"vectorise", "vectorize"},
	Short:   "Build the semantic search index for a repository",
	Long: "Embed the repository's source files into a local index so the model can " +
		"search the codebase by meaning during review.",
	Args: cobra.MaximumNArgs(1),
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

		log := newLogger()
		defer log.Sync()

		store, err := vectorindex.Open(vectorindex.DefaultPath(root))
		if err != nil {
			fail(err)
			return nil
		}
		defer store.Close()

		ix := vectorindex.NewIndexer(store, embedderFrom(cfg), vectorindex.IndexOptions{
			IncludedFileTypes: cfg.Vector.IncludedFileTypes,
			ExcludedFolders:   cfg.Vector.ExcludedFolders,
			MaxFileBytes:      cfg.Vector.MaxFileBytes,
			Workers:           cfg.Vector.Workers,
		}, log)
		stats, err := ix.Index(cmd.Context(), root)
		if err != nil {
			fail(err)
			return nil
		}
		if stats.Files == 0 && stats.Skipped > 0 {
			log.Error("no file could be indexed", zap.Int("skipped", stats.Skipped))
			exitCode = ExitRuntimeError
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d chunks, %d skipped) into %s\n",
			stats.Files, stats.Chunks, stats.Skipped, store.Path())
		return nil
	},
}

func init() {
	addModelFlags(vectorifyCmd)
}
