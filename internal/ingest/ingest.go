// Package ingest builds the vector collections the retriever searches: table
// schema descriptions and sample question/SQL pairs, embedded and upserted
// into Qdrant.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/rag"
	"github.com/sqlsage/sqlsage/internal/types"
)

const embedBatchSize = 64

// Ingester embeds corpus documents and writes them into Qdrant.
type Ingester struct {
	client   *qdrant.Client
	embedder rag.Embedder
	logger   *zap.Logger
	dim      uint64
}

// New connects to Qdrant and prepares an ingester.
func New(cfg config.QdrantConfig, embedder rag.Embedder, dim int, logger *zap.Logger) (*Ingester, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return NewWithClient(client, embedder, dim, logger), nil
}

// NewWithClient builds an ingester around an existing client.
func NewWithClient(client *qdrant.Client, embedder rag.Embedder, dim int, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		client:   client,
		embedder: embedder,
		logger:   logger,
		dim:      uint64(dim),
	}
}

// Run rebuilds all three collections from the corpora: the table collection,
// the sample-query collection, and the combined collection holding both.
func (ing *Ingester) Run(ctx context.Context, cfg config.QdrantConfig, tablesDir, queriesPath string) error {
	loader, err := NewLoader()
	if err != nil {
		return err
	}

	tables, err := loader.LoadTables(tablesDir)
	if err != nil {
		return err
	}
	samples, err := loader.LoadSampleQueries(queriesPath)
	if err != nil {
		return err
	}

	ing.logger.Info("corpus loaded",
		zap.Int("tables", len(tables)),
		zap.Int("sample_queries", len(samples)))

	if err := ing.IngestCollection(ctx, cfg.TablesCollection, tables); err != nil {
		return err
	}
	if err := ing.IngestCollection(ctx, cfg.SamplesCollection, samples); err != nil {
		return err
	}

	combined := make([]types.Document, 0, len(tables)+len(samples))
	combined = append(combined, tables...)
	combined = append(combined, samples...)
	return ing.IngestCollection(ctx, cfg.CombinedCollection, combined)
}

// IngestCollection recreates one collection and fills it with the given
// documents. Existing points are dropped so that reruns stay idempotent.
func (ing *Ingester) IngestCollection(ctx context.Context, collection string, docs []types.Document) error {
	if err := ing.recreateCollection(ctx, collection); err != nil {
		return err
	}

	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.PageContent
		}

		vectors, err := ing.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d for %s: %w", start, end, collection, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch for %s: got %d vectors for %d documents", collection, len(vectors), len(batch))
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for i, doc := range batch {
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(payloadFor(doc)),
			}
		}

		_, err = ing.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("upsert batch %d-%d into %s: %w", start, end, collection, err)
		}
	}

	ing.logger.Info("collection built",
		zap.String("collection", collection),
		zap.Int("documents", len(docs)))
	return nil
}

// Close releases the Qdrant connection.
func (ing *Ingester) Close() error {
	return ing.client.Close()
}

func (ing *Ingester) recreateCollection(ctx context.Context, name string) error {
	exists, err := ing.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if exists {
		if err := ing.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("drop collection %s: %w", name, err)
		}
	}

	err = ing.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ing.dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// payloadFor flattens a document into the payload shape the retriever reads
// back.
func payloadFor(doc types.Document) map[string]any {
	payload := map[string]any{
		"page_content": doc.PageContent,
		"type":         doc.Metadata.Type,
		"source":       doc.Metadata.Source,
		"token_count":  int64(doc.Metadata.TokenCount),
		"index":        int64(doc.Metadata.Index),
	}
	if doc.Metadata.TableName != "" {
		payload["table_name"] = doc.Metadata.TableName
	}
	if doc.Metadata.SQL != "" {
		payload["sql"] = doc.Metadata.SQL
	}
	return payload
}
