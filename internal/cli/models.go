package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/scribe/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Engine provider and model management",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List supported providers and common models",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		for _, p := range providers.Catalog() {
			name := p.Name
			if len(p.Aliases) > 0 {
				name += " (" + strings.Join(p.Aliases, ", ") + ")"
			}
			state := "unset"
			if os.Getenv(p.Env) != "" {
				state = "set"
			}
			fmt.Fprintf(w, "%s:  %s %s\n", name, p.Env, state)
			for _, m := range p.Models {
				fmt.Fprintf(w, "  - %s\n", m)
			}
		}
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured engine answers in JSON mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			fail(err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Checking %s (%s)...\n", cfg.Provider, cfg.Model)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		p, err := providers.New(ctx, cfg.Provider, cfg.Model)
		if err != nil {
			fail(err)
			return nil
		}
		if _, err := p.Complete(ctx, providers.Request{
			SystemPrompt: `Reply with the JSON object {"ok": true} and nothing else.`,
			UserPrompt:   "ping",
			MaxTokens:    16,
			JSON:         true,
		}); err != nil {
			fail(err)
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is configured and responding\n", p.Name())
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().StringVar(&flagProvider, "provider", "", "Provider to check")
	modelsDoctorCmd.Flags().StringVar(&flagModel, "model", "", "Model to check")
}
