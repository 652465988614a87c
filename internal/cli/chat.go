package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/vibecheck/internal/review"
)

var flagSystemPrompt string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the configured model",
	Long:  "Start an interactive session with the backend. Type exit or quit to leave.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		a, err := newApp(cfg, "", newLogger())
		if err != nil {
			fail(err)
			return nil
		}
		defer a.close()

		system := flagSystemPrompt
		if system == "" {
			system = review.DefaultChatPrompt
		}
		if err := a.orch.Chat(cmd.Context(), system, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			fail(err)
		}
		return nil
	},
}

func init() {
	addModelFlags(chatCmd)
	chatCmd.Flags().StringVar(&flagSystemPrompt, "system", "", "System prompt for the session")
}
