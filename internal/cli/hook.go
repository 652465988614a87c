package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hookMarkerStart = "# >>> vibecheck pre-commit hook >>>"
	hookMarkerEnd   = "# <<< vibecheck pre-commit hook <<<"
)

var (
	hookFailOn      bool
	hookFormat      string
	hookMaxComments int
)

// hookResult says what installHook or uninstallHook did to the file.
type hookResult int

const (
	hookCreated hookResult = iota
	hookUpdated
	hookRemoved
	hookStripped
	hookMissing
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Review staged changes before every commit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath()
		if err != nil {
			fail(err)
			return nil
		}
		res, err := installHook(path, generateHookScript(hookFailOn, hookFormat, hookMaxComments))
		if err != nil {
			fail(err)
			return nil
		}
		verb := "Installed"
		if res == hookUpdated {
			verb = "Updated"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s vibecheck pre-commit hook at %s\n", verb, path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the vibecheck pre-commit hook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := hookPath()
		if err != nil {
			fail(err)
			return nil
		}
		res, err := uninstallHook(path)
		if err != nil {
			fail(err)
			return nil
		}
		out := cmd.OutOrStdout()
		switch res {
		case hookMissing:
			fmt.Fprintln(out, "No vibecheck pre-commit hook found.")
		case hookRemoved:
			fmt.Fprintf(out, "Removed vibecheck pre-commit hook at %s\n", path)
		default:
			fmt.Fprintf(out, "Removed vibecheck section from %s\n", path)
		}
		return nil
	},
}

// hookPath asks git where the pre-commit hook lives, which honors
// core.hooksPath and worktrees.
func hookPath() (string, error) {
	out, err := exec.Command("git", "rev-parse", "--git-path", "hooks/pre-commit").Output()
	if err != nil {
		return "", errors.New("not a git repository (git rev-parse --git-path failed)")
	}
	path := strings.TrimSpace(string(out))
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// installHook writes section into the hook at path, replacing an earlier
// vibecheck section and keeping anything else the file runs.
func installHook(path, section string) (hookResult, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("reading hook file: %w", err)
	}

	res := hookCreated
	content := "#!/bin/sh\n" + section
	if len(existing) > 0 {
		content = replaceHookSection(string(existing), section)
		res = hookUpdated
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return 0, fmt.Errorf("writing hook file: %w", err)
	}
	return res, nil
}

// uninstallHook strips the vibecheck section from the hook at path and
// deletes the file when nothing but a shebang is left.
func uninstallHook(path string) (hookResult, error) {
	existing, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return hookMissing, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading hook file: %w", err)
	}
	if !strings.Contains(string(existing), hookMarkerStart) {
		return hookMissing, nil
	}

	content := removeHookSection(string(existing))
	switch strings.TrimSpace(content) {
	case "", "#!/bin/sh", "#!/bin/bash":
		if err := os.Remove(path); err != nil {
			return 0, fmt.Errorf("removing hook file: %w", err)
		}
		return hookRemoved, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return 0, fmt.Errorf("writing hook file: %w", err)
	}
	return hookStripped, nil
}

// generateHookScript renders the hook section. Exit code 1 (suggestions
// with --fail-on) blocks the commit; any other failure only warns.
func generateHookScript(failOn bool, format string, maxComments int) string {
	cmd := "vibecheck review staged"
	if failOn {
		cmd += " --fail-on"
	}
	return fmt.Sprintf(`%s
%s --format %s --max-comments %d
VIBECHECK_EXIT=$?
if [ $VIBECHECK_EXIT -eq 1 ]; then
  echo "vibecheck: review produced suggestions, commit blocked"
  exit 1
elif [ $VIBECHECK_EXIT -ge 2 ]; then
  echo "vibecheck: warning, review encountered an error (exit $VIBECHECK_EXIT), allowing commit"
fi
%s
`, hookMarkerStart, cmd, format, maxComments, hookMarkerEnd)
}

func replaceHookSection(existing, section string) string {
	before, after, ok := cutHookSection(existing)
	if !ok {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	return before + section + after
}

func removeHookSection(existing string) string {
	before, after, ok := cutHookSection(existing)
	if !ok {
		return existing
	}
	return before + after
}

// cutHookSection splits existing around the marked section.
func cutHookSection(existing string) (before, after string, ok bool) {
	start := strings.Index(existing, hookMarkerStart)
	end := strings.Index(existing, hookMarkerEnd)
	if start == -1 || end < start {
		return existing, "", false
	}
	after = strings.TrimPrefix(existing[end+len(hookMarkerEnd):], "\n")
	return existing[:start], after, true
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	hookInstallCmd.Flags().BoolVar(&hookFailOn, "fail-on", true, "Block the commit when the review produces suggestions")
	hookInstallCmd.Flags().StringVar(&hookFormat, "format", "text", "Output format (text, json, markdown, sarif)")
	hookInstallCmd.Flags().IntVar(&hookMaxComments, "max-comments", 10, "Maximum number of comments")
}
