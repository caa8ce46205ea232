// Package agent implements the single-tool agent loop that turns a natural
// language question into a SQL response.
package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/llm"
	"github.com/sqlsage/sqlsage/internal/types"
)

// Retriever fetches context documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]types.Document, error)
}

// Agent runs the bounded decision loop: the model may invoke the retriever at
// most once before producing its final structured answer.
type Agent struct {
	model     llm.ChatModel
	retriever Retriever
	logger    *zap.Logger
}

// New creates an agent.
func New(model llm.ChatModel, retriever Retriever, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		model:     model,
		retriever: retriever,
		logger:    logger,
	}
}

// Run executes one agent turn for the question. The loop passes through the
// model at most twice: once where the retriever tool is bound, and, if the
// model requested it, once more after the tool result is appended. The phase
// value only advances, so a second tool invocation is impossible.
func (a *Agent) Run(ctx context.Context, question string) (*types.TurnResult, error) {
	messages := []types.Message{
		{Kind: types.KindHuman, Content: question},
	}
	phase := types.PhaseAwaitingDecision

	var docs []types.Document
	var usage types.TokenUsage

	for phase != types.PhaseDone {
		if !hasSystemMessage(messages) {
			messages = append([]types.Message{
				{Kind: types.KindSystem, Content: llm.SystemInstruction()},
			}, messages...)
		}

		reply, callUsage, err := a.model.Chat(ctx, messages, phase == types.PhaseAwaitingDecision)
		if err != nil {
			return nil, err
		}
		usage.Add(callUsage)
		messages = append(messages, reply)

		if reply.ToolCall == nil || phase != types.PhaseAwaitingDecision {
			phase = types.PhaseDone
			break
		}

		docs = a.invokeRetriever(ctx, question, reply.ToolCall)
		messages = append(messages, types.Message{
			Kind:       types.KindTool,
			Content:    llm.FormatDocuments(docs),
			ToolCallID: reply.ToolCall.ID,
		})
		phase = types.PhaseToolInvoked
	}

	final := messages[len(messages)-1]
	response, err := ParseResponse(final.Content)
	if err != nil {
		return nil, err
	}

	a.logger.Info("agent run completed",
		zap.Int("documents", len(docs)),
		zap.Int("total_tokens", usage.TotalTokens),
		zap.Bool("tool_used", len(docs) > 0))

	return &types.TurnResult{
		Response:  *response,
		Documents: docs,
		Messages:  messages,
		Usage:     usage,
		Phase:     phase,
	}, nil
}

// invokeRetriever executes the requested tool call. Retrieval failure
// degrades to empty context; it never aborts the turn.
func (a *Agent) invokeRetriever(ctx context.Context, question string, call *types.ToolCall) []types.Document {
	query := call.Query
	if query == "" {
		query = question
	}

	docs, err := a.retriever.Retrieve(ctx, query)
	if err != nil {
		a.logger.Warn("retrieval failed, continuing without context", zap.Error(err))
		return nil
	}
	return docs
}

func hasSystemMessage(messages []types.Message) bool {
	for _, msg := range messages {
		if msg.Kind == types.KindSystem {
			return true
		}
	}
	return false
}
