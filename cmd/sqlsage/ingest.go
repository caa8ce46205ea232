package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsage/sqlsage/internal/ingest"
	"github.com/sqlsage/sqlsage/internal/rag"
)

var (
	ingestTablesDir   string
	ingestQueriesPath string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector collections from the corpus files",
	Long: `Embed the table schema descriptions and sample question/SQL pairs and
write them into Qdrant. Existing collections are rebuilt from scratch.

The tables directory holds one markdown file per table; the queries file
is a JSON array of {"question": ..., "sql": ...} objects.

Examples:
  sqlsage ingest --tables ./data/tables --queries ./data/queries.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest()
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTablesDir, "tables", "data/tables", "Directory of table description markdown files")
	ingestCmd.Flags().StringVar(&ingestQueriesPath, "queries", "data/queries.json", "Sample queries JSON file")
}

func runIngest() error {
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required to embed the corpus")
	}

	embedder := rag.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Embedding.Model)

	ingester, err := ingest.New(cfg.Qdrant, embedder, embeddingDim(cfg.Embedding.Model), logger)
	if err != nil {
		return err
	}
	defer ingester.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := ingester.Run(ctx, cfg.Qdrant, ingestTablesDir, ingestQueriesPath); err != nil {
		return err
	}

	fmt.Println("Collections built:",
		cfg.Qdrant.TablesCollection+",",
		cfg.Qdrant.SamplesCollection+",",
		cfg.Qdrant.CombinedCollection)
	return nil
}

// embeddingDim maps the embedding model to its vector width.
func embeddingDim(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		// text-embedding-3-small and ada-002
		return 1536
	}
}
