package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/types"
)

// Retriever performs nearest-neighbor lookups against one Qdrant collection.
type Retriever struct {
	client   *qdrant.Client
	embedder Embedder
	logger   *zap.Logger
}

// NewRetriever connects to Qdrant and wires the embedder used for query
// vectors.
func NewRetriever(host string, port int, embedder Embedder, logger *zap.Logger) (*Retriever, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", host, port, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retriever{
		client:   client,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// NewRetrieverWithClient builds a retriever around an existing client.
func NewRetrieverWithClient(client *qdrant.Client, embedder Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{client: client, embedder: embedder, logger: logger}
}

// Search embeds the query and returns the topK most similar documents from
// the collection, ordered by descending similarity. An unreachable index
// yields an error wrapping types.ErrRetrievalUnavailable; an empty result
// list means no relevant context.
func (r *Retriever) Search(ctx context.Context, collection, query string, topK int) ([]types.Document, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}

	limit := uint64(topK)

	results, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query collection %s: %v", types.ErrRetrievalUnavailable, collection, err)
	}

	docs := make([]types.Document, 0, len(results))
	for _, result := range results {
		doc := types.Document{
			Score: float64(result.Score),
		}
		if result.Payload != nil {
			doc.PageContent, _ = payloadString(result.Payload, "page_content")
			doc.Metadata = payloadMetadata(result.Payload)
		}
		docs = append(docs, doc)
	}

	r.logger.Debug("search completed",
		zap.String("collection", collection),
		zap.Int("results", len(docs)),
		zap.String("query_preview", truncate(query, 50)))

	return docs, nil
}

// Client exposes the underlying Qdrant client for collection management.
func (r *Retriever) Client() *qdrant.Client {
	return r.client
}

// payloadMetadata maps a Qdrant payload onto document metadata.
func payloadMetadata(payload map[string]*qdrant.Value) types.DocumentMetadata {
	md := types.DocumentMetadata{}
	md.Type, _ = payloadString(payload, "type")
	md.TableName, _ = payloadString(payload, "table_name")
	md.SQL, _ = payloadString(payload, "sql")
	md.Source, _ = payloadString(payload, "source")
	if v, ok := payload["token_count"]; ok {
		md.TokenCount = int(v.GetIntegerValue())
	}
	if v, ok := payload["index"]; ok {
		md.Index = int(v.GetIntegerValue())
	}
	return md
}

// payloadString extracts a string value from a Qdrant payload.
func payloadString(payload map[string]*qdrant.Value, key string) (string, bool) {
	if val, ok := payload[key]; ok {
		if strVal := val.GetStringValue(); strVal != "" {
			return strVal, true
		}
	}
	return "", false
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
