package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/types"
)

// Reranker scores (query, document) pairs with the ONNX cross-encoder.
type Reranker struct {
	tokenizer *PairTokenizer
	encoder   *CrossEncoder
	logger    *zap.Logger
}

// NewReranker loads the cross-encoder model and its vocabulary.
func NewReranker(cfg config.RerankerConfig, logger *zap.Logger) (*Reranker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tokenizer, err := NewPairTokenizer(cfg.VocabPath, cfg.MaxSeqLen)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	encoder, err := NewCrossEncoder(cfg.ModelPath, tokenizer.MaxLength())
	if err != nil {
		return nil, fmt.Errorf("load cross-encoder: %w", err)
	}

	return &Reranker{
		tokenizer: tokenizer,
		encoder:   encoder,
		logger:    logger,
	}, nil
}

// Score returns one relevance score per document, in input order.
func (r *Reranker) Score(ctx context.Context, query string, docs []types.Document) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encodings := make([]*PairEncoding, len(docs))
	for i, doc := range docs {
		encodings[i] = r.tokenizer.EncodePair(query, doc.PageContent)
	}

	scores, err := r.encoder.ScorePairs(encodings)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("reranked candidates",
		zap.Int("candidates", len(docs)),
		zap.String("query_preview", truncate(query, 50)))

	return scores, nil
}

// Close releases the underlying ONNX resources.
func (r *Reranker) Close() error {
	return r.encoder.Close()
}
