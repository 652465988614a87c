package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/vibecheck/internal/config"
	"github.com/dshills/vibecheck/internal/gitctx"
	"github.com/dshills/vibecheck/internal/output"
)

// Model flags, shared by every command that talks to a backend
var (
	flagProvider string
	flagModel    string
	flagURL      string
	flagPoolSize int
)

// Shared review flags
var (
	flagPaths        string
	flagExclude      string
	flagContextLines int
	flagMaxDiffBytes int
	flagFormat       string
	flagOut          string
	flagFailOn       bool
	flagMaxComments  int
	flagRules        string
	flagNoRedact     bool
	flagNoTools      bool
)

// Flags of the review command itself
var (
	flagRepoPath     string
	flagDiff         string
	flagDiffFile     string
	flagSource       string
	flagTarget       string
	flagSourceOffset int
	flagTargetOffset int
)

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "Backend provider (ollama, openai, lmstudio, llamacpp)")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagURL, "url", "", "Backend base URL")
	cmd.Flags().IntVar(&flagPoolSize, "pool-size", 0, "Number of concurrent model contexts")
}

func addReviewFlags(cmd *cobra.Command) {
	addModelFlags(cmd)
	cmd.Flags().StringVar(&flagPaths, "paths", "", "Include file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	cmd.Flags().IntVar(&flagMaxDiffBytes, "max-diff-bytes", 0, "Maximum diff size in bytes")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&flagFailOn, "fail-on", false, "Exit with code 1 when any comment is produced")
	cmd.Flags().IntVar(&flagMaxComments, "max-comments", 0, "Maximum number of comments")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path (YAML or JSON)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoTools, "no-tools", false, "Do not offer repository tools to the model")
}

// buildOverrides maps set flags onto dotted config keys.
func buildOverrides() map[string]string {
	m := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	setInt := func(key string, value int) {
		if value > 0 {
			m[key] = strconv.Itoa(value)
		}
	}
	set("backend.provider", flagProvider)
	set("backend.model", flagModel)
	set("backend.url", flagURL)
	setInt("inference.poolSize", flagPoolSize)
	set("review.format", flagFormat)
	setInt("review.maxComments", flagMaxComments)
	set("review.rulesFile", flagRules)
	setInt("git.contextLines", flagContextLines)
	setInt("git.maxDiffBytes", flagMaxDiffBytes)
	if flagFailOn {
		m["review.failOn"] = "true"
	}
	if flagNoRedact {
		m["privacy.redactSecrets"] = "false"
	}
	if flagNoTools {
		m["tools.enabled"] = "false"
	}
	return m
}

// loadConfig returns the effective config with flag overrides applied.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(buildOverrides())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	return cfg, nil
}

func buildDiffOpts(cfg config.Config) gitctx.DiffOptions {
	opts := gitctx.DiffOptions{
		ContextLines: cfg.Git.ContextLines,
		MaxDiffBytes: cfg.Git.MaxDiffBytes,
		Include:      cfg.Git.Include,
		Exclude:      cfg.Git.Exclude,
	}
	if flagPaths != "" {
		opts.Include = splitComma(flagPaths)
	}
	if flagExclude != "" {
		opts.Exclude = append(opts.Exclude, splitComma(flagExclude)...)
	}
	return opts
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func repoRoot() string {
	root := flagRepoPath
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// reviewSource picks the patch source for the bare review command: diff
// text when given, otherwise the configured branch comparison.
func reviewSource(cfg config.Config, root string, stdin io.Reader) (gitctx.PatchSource, error) {
	switch {
	case flagDiff != "" && flagDiffFile != "":
		return nil, fmt.Errorf("%w: --diff and --diff-file are mutually exclusive", errUsage)
	case flagDiff != "":
		return gitctx.TextSource{Text: flagDiff, Dir: root}, nil
	case flagDiffFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading diff from stdin: %w", err)
		}
		return gitctx.TextSource{Text: string(data), Dir: root}, nil
	case flagDiffFile != "":
		data, err := os.ReadFile(flagDiffFile)
		if err != nil {
			return nil, fmt.Errorf("reading diff file: %w", err)
		}
		return gitctx.TextSource{Text: string(data), Dir: root}, nil
	}

	source, target := cfg.Git.SourceBranch, cfg.Git.TargetBranch
	if flagSource != "" {
		source = flagSource
	}
	if flagTarget != "" {
		target = flagTarget
	}
	sourceOffset, targetOffset := cfg.Git.SourceOffset, cfg.Git.TargetOffset
	if flagSourceOffset > 0 {
		sourceOffset = flagSourceOffset
	}
	if flagTargetOffset > 0 {
		targetOffset = flagTargetOffset
	}
	return gitctx.BranchSource(root, target, targetOffset, source, sourceOffset, buildDiffOpts(cfg)), nil
}

func runReview(cmd *cobra.Command, cfg config.Config, root string, src gitctx.PatchSource) {
	log := newLogger()
	if !cfg.Privacy.RedactSecrets {
		log.Warn("secret redaction is disabled")
	}

	a, err := newApp(cfg, root, log)
	if err != nil {
		fail(err)
		return
	}
	defer a.close()

	report, err := a.engine.Review(cmd.Context(), src)
	if err != nil {
		fail(err)
		return
	}

	if err := output.WriteReport(report, cfg.Review.Format, flagOut); err != nil {
		fail(fmt.Errorf("writing output: %w", err))
		return
	}

	if n := report.Summary.FailedHunks; n > 0 && n == report.Inputs.Hunks {
		log.Error("no hunk could be reviewed", zap.Int("hunks", n))
		exitCode = ExitRuntimeError
		return
	}
	if cfg.Review.FailOn && len(report.Comments) > 0 {
		exitCode = ExitFindings
	}
}

// reviewWith runs a review subcommand whose source depends only on config.
func reviewWith(pick func(cfg config.Config, root string, args []string) gitctx.PatchSource) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		root := repoRoot()
		runReview(cmd, cfg, root, pick(cfg, root, args))
		return nil
	}
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review code changes",
	Long: "Review the difference between two branches, or a unified diff given with --diff or --diff-file. " +
		"Subcommands review staged, unstaged, commit and range diffs.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		root := repoRoot()
		src, err := reviewSource(cfg, root, cmd.InOrStdin())
		if err != nil {
			fail(err)
			return nil
		}
		runReview(cmd, cfg, root, src)
		return nil
	},
}

var reviewUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Review unstaged changes (working tree vs index)",
	Args:  cobra.NoArgs,
	RunE: reviewWith(func(cfg config.Config, root string, args []string) gitctx.PatchSource {
		return gitctx.UnstagedSource(root, buildDiffOpts(cfg))
	}),
}

var reviewStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Review staged changes (index vs HEAD)",
	Args:  cobra.NoArgs,
	RunE: reviewWith(func(cfg config.Config, root string, args []string) gitctx.PatchSource {
		return gitctx.StagedSource(root, buildDiffOpts(cfg))
	}),
}

var reviewCommitCmd = &cobra.Command{
	Use:   "commit <sha>",
	Short: "Review a specific commit",
	Args:  cobra.ExactArgs(1),
	RunE: reviewWith(func(cfg config.Config, root string, args []string) gitctx.PatchSource {
		return gitctx.CommitSource(root, args[0], buildDiffOpts(cfg))
	}),
}

var (
	flagMergeBase bool
)

var reviewRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Review a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: reviewWith(func(cfg config.Config, root string, args []string) gitctx.PatchSource {
		return gitctx.RangeSource(root, args[0], flagMergeBase, buildDiffOpts(cfg))
	}),
}

func init() {
	reviewCmd.AddCommand(reviewUnstagedCmd)
	reviewCmd.AddCommand(reviewStagedCmd)
	reviewCmd.AddCommand(reviewCommitCmd)
	reviewCmd.AddCommand(reviewRangeCmd)

	for _, cmd := range []*cobra.Command{
		reviewCmd,
		reviewUnstagedCmd,
		reviewStagedCmd,
		reviewCommitCmd,
		reviewRangeCmd,
	} {
		addReviewFlags(cmd)
		cmd.Flags().StringVar(&flagRepoPath, "path", ".", "Repository path")
	}

	reviewCmd.Flags().StringVar(&flagDiff, "diff", "", "Unified diff text to review")
	reviewCmd.Flags().StringVar(&flagDiffFile, "diff-file", "", "File holding a unified diff (- for stdin)")
	reviewCmd.Flags().StringVar(&flagSource, "source", "", "Source branch (default from config)")
	reviewCmd.Flags().StringVar(&flagTarget, "target", "", "Target branch (default from config)")
	reviewCmd.Flags().IntVar(&flagSourceOffset, "source-offset", 0, "Commits to step back from the source branch")
	reviewCmd.Flags().IntVar(&flagTargetOffset, "target-offset", 0, "Commits to step back from the target branch")

	reviewRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for branch comparisons")
}
