package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagToolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tools offered to the model",
	Long:  "Print the tool catalog exactly as the model sees it for the repository at --path.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		root := repoRoot()
		a, err := newApp(cfg, root, newLogger())
		if err != nil {
			fail(err)
			return nil
		}
		defer a.close()

		tc := a.toolContext(root)
		if flagToolsJSON {
			data, err := a.registry.DescribeJSON(tc)
			if err != nil {
				fail(err)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), data)
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), a.registry.DescribeAvailable(tc))
		return nil
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&flagToolsJSON, "json", false, "Print the catalog as JSON")
	toolsCmd.Flags().StringVar(&flagRepoPath, "path", ".", "Repository path")
}
