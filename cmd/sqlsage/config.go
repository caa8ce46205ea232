package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var configSavePath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or write configuration",
	Long: `View the effective configuration after defaults, config file and
environment overrides are applied.

Examples:
  sqlsage config                      # View current config
  sqlsage config --save config.yaml   # Write the effective config to a file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig()
	},
}

func init() {
	configCmd.Flags().StringVar(&configSavePath, "save", "", "Write the effective config to this path")
}

func runConfig() error {
	if configSavePath != "" {
		if err := cfg.Save(configSavePath); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Render("Configuration written to " + configSavePath))
		fmt.Println()
	}

	printConfig()
	return nil
}

func printConfig() {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF")).
		Width(24)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F9FAFB"))

	fmt.Println(headerStyle.Render("sqlsage Configuration"))
	fmt.Println()

	printKV := func(key, value string) {
		fmt.Printf("%s %s\n", keyStyle.Render(key+":"), valueStyle.Render(value))
	}

	printKV("Testing mode", fmt.Sprintf("%v", cfg.Testing))
	printKV("Log level", cfg.LogLevel)
	printKV("Model", cfg.LLM.Model)
	printKV("Embedding model", cfg.Embedding.Model)
	printKV("Qdrant", fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port))
	printKV("Retrieval strategy", cfg.Retrieval.Strategy)
	printKV("Database", fmt.Sprintf("%s@%s:%d/%s", redactedUser(), cfg.Database.Host, cfg.Database.Port, cfg.Database.Name))
	printKV("HTTP addr", cfg.HTTP.Addr)
	printKV("Session TTL", fmt.Sprintf("%d minutes", cfg.Session.TTLMinutes))

	if cfg.LLM.APIKey == "" {
		fmt.Println()
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Render("OPENAI_API_KEY is not set"))
	}
}

func redactedUser() string {
	if cfg.Database.User == "" {
		return "(no credentials)"
	}
	return cfg.Database.User
}
