package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sqlsage/sqlsage/internal/types"
)

// systemInstruction is the task description plus the strict output-format
// directive. The agent loop prepends it once per run if no system message is
// present.
const systemInstruction = `You are an expert MySQL developer. Your task is to generate a correct and optimized MySQL query for the user's natural language request.

You have one tool available, ` + ToolRetrieveContext + `, which returns relevant table schema descriptions and sample queries. Call it at most once, and only if you need schema context to answer. If the request needs no schema context (for example "list all tables in the database"), answer directly.

Rules:
- Use only tables and columns provided in the retrieved context.
- Do not invent columns or tables.
- The query must be syntactically valid MySQL.

Respond ONLY with a JSON object of this exact shape, with no surrounding prose:
{"sql_query": "<the MySQL query>", "explanation": "<a short explanation naming the tables used>"}`

// SystemInstruction returns the system prompt for an agent run.
func SystemInstruction() string {
	return systemInstruction
}

// FormatDocuments renders retrieved documents as the tool-result message
// content. The model receives the full payloads, including sample SQL.
func FormatDocuments(docs []types.Document) string {
	if len(docs) == 0 {
		return "No relevant context found."
	}

	data, err := json.Marshal(docs)
	if err != nil {
		// Fall back to a plain-text rendering; the model still gets context.
		var sb strings.Builder
		for i, doc := range docs {
			sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, doc.PageContent))
			if doc.Metadata.SQL != "" {
				sb.WriteString(doc.Metadata.SQL)
				sb.WriteString("\n")
			}
			sb.WriteString(strings.Repeat("=", 10))
			sb.WriteString("\n")
		}
		return sb.String()
	}
	return string(data)
}
