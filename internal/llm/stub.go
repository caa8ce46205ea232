package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sqlsage/sqlsage/internal/types"
)

// StubModel is the ChatModel used in testing mode. It performs no network
// calls. On the first pass it requests the retrieval tool once, so a testing
// turn walks the same tool path as production and sees the placeholder
// context; the follow-up pass returns a fixed well-formed SQL response.
type StubModel struct{}

// Chat implements ChatModel with canned output.
func (s *StubModel) Chat(_ context.Context, messages []types.Message, allowTool bool) (types.Message, types.TokenUsage, error) {
	question := ""
	toolInvoked := false
	for _, msg := range messages {
		switch msg.Kind {
		case types.KindHuman:
			question = msg.Content
		case types.KindTool:
			toolInvoked = true
		}
	}

	if allowTool && !toolInvoked {
		return types.Message{
			Kind: types.KindAI,
			ToolCall: &types.ToolCall{
				ID:    "stub-call-1",
				Name:  ToolRetrieveContext,
				Query: question,
			},
		}, types.TokenUsage{}, nil
	}

	resp := types.SQLResponse{
		SQLQuery:    "SELECT 1;",
		Explanation: "Placeholder response generated in testing mode; no tables were consulted.",
	}
	if strings.Contains(strings.ToLower(question), "list all tables") {
		resp = types.SQLResponse{
			SQLQuery:    "SHOW TABLES;",
			Explanation: "Lists every table in the current database; no specific tables are referenced.",
		}
	}

	payload, _ := json.Marshal(resp)
	return types.Message{
		Kind:    types.KindAI,
		Content: string(payload),
	}, types.TokenUsage{}, nil
}
