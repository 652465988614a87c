package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/vibecheck/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Backend and model management",
}

type modelInfo struct {
	Provider string
	Models   []string
}

// suggestedModels are code models known to follow the review format.
var suggestedModels = []modelInfo{
	{
		Provider: "ollama",
		Models: []string{
			"qwen2.5-coder",
			"qwen3-coder",
			"deepseek-coder-v2",
			"codellama",
			"llama3.1",
		},
	},
	{
		Provider: "openai",
		Models: []string{
			"qwen2.5-coder-7b-instruct",
			"deepseek-coder-v2-lite-instruct",
		},
	},
}

var flagModelsSuggested bool

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models the configured server offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if flagModelsSuggested {
			for _, info := range suggestedModels {
				fmt.Fprintf(out, "%s:\n", info.Provider)
				for _, m := range info.Models {
					fmt.Fprintf(out, "  - %s\n", m)
				}
				fmt.Fprintln(out)
			}
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		b, err := providers.New(backendOptions(cfg))
		if err != nil {
			fail(err)
			return nil
		}
		lister, ok := b.(providers.ModelLister)
		if !ok {
			fail(fmt.Errorf("%s cannot list models", b.Name()))
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		models, err := lister.ListModels(ctx)
		if err != nil {
			fail(err)
			return nil
		}
		fmt.Fprintf(out, "%s (%s):\n", b.Name(), cfg.Backend.URL)
		for _, m := range models {
			marker := " "
			if m == cfg.Backend.Model || strings.HasPrefix(m, cfg.Backend.Model+":") {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}
		return nil
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured backend is reachable and responding",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fail(err)
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Checking %s model %s...\n", cfg.Backend.Provider, cfg.Backend.Model)

		b, err := providers.New(backendOptions(cfg))
		if err != nil {
			fail(err)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		reply, err := ping(ctx, b)
		if err != nil {
			fmt.Fprintf(out, "FAIL: %v\n", err)
			exitCode = exitCodeFor(err)
			return nil
		}
		fmt.Fprintf(out, "OK: %s is configured and responding (%q)\n", b.Name(), reply)
		return nil
	},
}

// ping asks for a one-word reply and returns what arrived.
func ping(ctx context.Context, b providers.Backend) (string, error) {
	s := providers.DefaultSampling()
	s.MaxTokens = 10
	messages := []providers.Message{
		{Role: providers.RoleSystem, Content: "Respond with exactly: ok"},
		{Role: providers.RoleUser, Content: "ping"},
	}
	var reply strings.Builder
	for tok, err := range b.StreamChat(ctx, messages, s) {
		if err != nil {
			return "", err
		}
		reply.WriteString(tok)
	}
	if strings.TrimSpace(reply.String()) == "" {
		return "", errors.New("empty reply")
	}
	return strings.TrimSpace(reply.String()), nil
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	for _, cmd := range []*cobra.Command{modelsListCmd, modelsDoctorCmd} {
		addModelFlags(cmd)
	}
	modelsListCmd.Flags().BoolVar(&flagModelsSuggested, "suggested", false, "List suggested code models instead of querying the server")
}
