package rag

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/types"
)

// Pipeline orchestrates context retrieval for a user question. It owns the
// strategy choice: the combined-index path is the production default, the
// rerank path re-scores the union of the two per-type retrievals with a
// cross-encoder.
type Pipeline struct {
	retriever *Retriever
	reranker  *Reranker

	strategy           string
	tablesCollection   string
	samplesCollection  string
	combinedCollection string
	topK               int
	combinedTopK       int
	rerankKeep         int

	testing bool
	logger  *zap.Logger
}

// NewPipeline builds the retrieval pipeline from configuration. In testing
// mode no external connections are opened.
func NewPipeline(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{
		strategy:           cfg.Retrieval.Strategy,
		tablesCollection:   cfg.Qdrant.TablesCollection,
		samplesCollection:  cfg.Qdrant.SamplesCollection,
		combinedCollection: cfg.Qdrant.CombinedCollection,
		topK:               cfg.Retrieval.TopK,
		combinedTopK:       cfg.Retrieval.CombinedTopK,
		rerankKeep:         cfg.Retrieval.RerankKeep,
		testing:            cfg.Testing,
		logger:             logger,
	}

	if cfg.Testing {
		logger.Info("testing mode: retrieval returns placeholder context")
		return p, nil
	}

	embedder := NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.Embedding.Model)
	retriever, err := NewRetriever(cfg.Qdrant.Host, cfg.Qdrant.Port, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("create retriever: %w", err)
	}
	p.retriever = retriever

	if cfg.Retrieval.Strategy == config.StrategyRerank {
		reranker, err := NewReranker(cfg.Reranker, logger)
		if err != nil {
			return nil, fmt.Errorf("create reranker: %w", err)
		}
		p.reranker = reranker
	}

	return p, nil
}

// NewPipelineWithRetriever builds a pipeline around an existing retriever.
// Used by tests and the ingest command.
func NewPipelineWithRetriever(retriever *Retriever, cfg *config.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		retriever:          retriever,
		strategy:           cfg.Retrieval.Strategy,
		tablesCollection:   cfg.Qdrant.TablesCollection,
		samplesCollection:  cfg.Qdrant.SamplesCollection,
		combinedCollection: cfg.Qdrant.CombinedCollection,
		topK:               cfg.Retrieval.TopK,
		combinedTopK:       cfg.Retrieval.CombinedTopK,
		rerankKeep:         cfg.Retrieval.RerankKeep,
		testing:            cfg.Testing,
		logger:             logger,
	}
}

// Retrieve returns relevant documents for the query, ordered by descending
// relevance. An empty result means no relevant context.
func (p *Pipeline) Retrieve(ctx context.Context, query string) ([]types.Document, error) {
	if query == "" {
		return nil, nil
	}

	if p.testing {
		return []types.Document{placeholderDocument()}, nil
	}

	switch p.strategy {
	case config.StrategyRerank:
		return p.retrieveReranked(ctx, query)
	default:
		return p.retrieveCombined(ctx, query)
	}
}

// retrieveCombined queries the combined collection holding both document
// types.
func (p *Pipeline) retrieveCombined(ctx context.Context, query string) ([]types.Document, error) {
	docs, err := p.retriever.Search(ctx, p.combinedCollection, query, p.combinedTopK)
	if err != nil {
		p.logger.Error("combined retrieval failed",
			zap.Error(err),
			zap.String("query_preview", truncate(query, 50)))
		return nil, err
	}
	return docs, nil
}

// retrieveBasic unions the per-type collections, topK from each. The result
// is the reranker's candidate set.
func (p *Pipeline) retrieveBasic(ctx context.Context, query string) ([]types.Document, error) {
	tableDocs, err := p.retriever.Search(ctx, p.tablesCollection, query, p.topK)
	if err != nil {
		return nil, err
	}
	sampleDocs, err := p.retriever.Search(ctx, p.samplesCollection, query, p.topK)
	if err != nil {
		return nil, err
	}
	return append(tableDocs, sampleDocs...), nil
}

// retrieveReranked scores every (query, candidate) pair with the
// cross-encoder and keeps the top rerankKeep.
func (p *Pipeline) retrieveReranked(ctx context.Context, query string) ([]types.Document, error) {
	candidates, err := p.retrieveBasic(ctx, query)
	if err != nil {
		p.logger.Error("candidate retrieval failed", zap.Error(err))
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scores, err := p.reranker.Score(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}

	for i := range candidates {
		candidates[i].Score = scores[i]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	keep := p.rerankKeep
	if keep > len(candidates) {
		keep = len(candidates)
	}
	return candidates[:keep], nil
}

// Close releases pipeline resources.
func (p *Pipeline) Close() error {
	if p.reranker != nil {
		return p.reranker.Close()
	}
	return nil
}

// placeholderDocument is the fixed context used in testing mode.
func placeholderDocument() types.Document {
	return types.Document{
		PageContent: "Dummy context",
		Metadata: types.DocumentMetadata{
			Type:   types.DocTypeTablesInfo,
			Source: "testing",
		},
	}
}
