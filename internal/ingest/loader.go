package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/weaviate/tiktoken-go"

	"github.com/sqlsage/sqlsage/internal/types"
)

// tokenEncoding matches the encoding used by the embedding models.
const tokenEncoding = "cl100k_base"

var tableNamePattern = regexp.MustCompile("## Table Name: `([^`]+)`")

// sampleQuery is one entry in the sample-queries corpus file.
type sampleQuery struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// Loader reads the schema and sample-query corpora from disk and turns them
// into documents ready for embedding.
type Loader struct {
	counter *tiktoken.Tiktoken
}

// NewLoader initializes the token counter used to annotate documents.
func NewLoader() (*Loader, error) {
	counter, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("initialize token encoding %s: %w", tokenEncoding, err)
	}
	return &Loader{counter: counter}, nil
}

// LoadTables reads every markdown table description under dir. Each file
// becomes one document of type tables-info.
func (l *Loader) LoadTables(dir string) ([]types.Document, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob table files in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no table description files (*.md) found in %s", dir)
	}
	sort.Strings(paths)

	docs := make([]types.Document, 0, len(paths))
	for i, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read table file %s: %w", path, err)
		}
		content := strings.TrimSpace(string(raw))
		docs = append(docs, types.Document{
			PageContent: content,
			Metadata: types.DocumentMetadata{
				Type:       types.DocTypeTablesInfo,
				TableName:  tableName(path, content),
				Source:     path,
				TokenCount: l.countTokens(content),
				Index:      i,
			},
		})
	}
	return docs, nil
}

// LoadSampleQueries reads the question/SQL pairs from a JSON file. The
// question text is what gets embedded; the SQL rides along in metadata.
func (l *Loader) LoadSampleQueries(path string) ([]types.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample queries %s: %w", path, err)
	}

	var entries []sampleQuery
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse sample queries %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no sample queries in %s", path)
	}

	source := filepath.Base(path)
	docs := make([]types.Document, 0, len(entries))
	for i, entry := range entries {
		question := strings.TrimSpace(entry.Question)
		if question == "" || strings.TrimSpace(entry.SQL) == "" {
			return nil, fmt.Errorf("sample query %d in %s is missing question or sql", i, path)
		}
		docs = append(docs, types.Document{
			PageContent: question,
			Metadata: types.DocumentMetadata{
				Type:       types.DocTypeSampleQueries,
				SQL:        entry.SQL,
				Source:     source,
				TokenCount: l.countTokens(question),
				Index:      i,
			},
		})
	}
	return docs, nil
}

func (l *Loader) countTokens(text string) int {
	return len(l.counter.Encode(text, nil, nil))
}

// tableName prefers the markdown header, falling back to the file name.
func tableName(path, content string) string {
	if match := tableNamePattern.FindStringSubmatch(content); len(match) == 2 {
		return match[1]
	}
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSuffix(name, "_tbl")
}
