package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/agent"
	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/executor"
	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/logging"
	"github.com/sqlsage/sqlsage/internal/rag"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sqlsage",
	Short: "Natural language to SQL assistant",
	Long: Banner() + `

  Ask questions about your database in plain English. The assistant
  retrieves relevant schema descriptions and sample queries from a vector
  index, generates MySQL with a hosted model, and can run the result
  against the database.

Usage:
  sqlsage ask "who are the highest paid employees?"
  sqlsage chat                 Start the interactive terminal chat
  sqlsage serve                Start the web front end
  sqlsage ingest               Build the vector collections
  sqlsage config               View configuration
  sqlsage version              Show version info`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env is fine, the environment may already be set
		_ = godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromPaths("config.yaml", "config.yml")
		}
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger = logging.New(level)
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildAgent wires the retrieval pipeline and the chat model. The returned
// pipeline must be closed by the caller.
func buildAgent() (*agent.Agent, *rag.Pipeline, error) {
	pipeline, err := rag.NewPipeline(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize retrieval: %w", err)
	}

	var model llm.ChatModel
	if cfg.Testing {
		model = &llm.StubModel{}
	} else {
		model = llm.NewClient(cfg.LLM, logger)
	}

	return agent.New(model, pipeline, logger), pipeline, nil
}

// buildExecutor returns nil without error when database credentials are not
// configured; callers degrade to generation-only mode.
func buildExecutor() (*executor.Executor, error) {
	if cfg.Testing {
		return nil, nil
	}
	if cfg.Database.User == "" || cfg.Database.Password == "" {
		logger.Warn("database credentials missing, queries will not be executed",
			zap.String("hint", "set DB_USER and DB_CRED"))
		return nil, nil
	}
	return executor.New(cfg.Database, logger)
}

// Banner returns the ASCII art logo used by the root help text.
func Banner() string {
	return `
   ███████╗ ██████╗ ██╗     ███████╗ █████╗  ██████╗ ███████╗
   ██╔════╝██╔═══██╗██║     ██╔════╝██╔══██╗██╔════╝ ██╔════╝
   ███████╗██║   ██║██║     ███████╗███████║██║  ███╗█████╗
   ╚════██║██║▄▄ ██║██║     ╚════██║██╔══██║██║   ██║██╔══╝
   ███████║╚██████╔╝███████╗███████║██║  ██║╚██████╔╝███████╗
   ╚══════╝ ╚══▀▀═╝ ╚══════╝╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝`
}
