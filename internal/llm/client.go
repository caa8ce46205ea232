// Package llm talks to the hosted language model.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/config"
	"github.com/sqlsage/sqlsage/internal/types"
)

// ToolRetrieveContext is the single capability exposed to the model.
const ToolRetrieveContext = "retrieve_schema_context"

// ChatModel is the model interface the agent loop depends on.
type ChatModel interface {
	// Chat sends the message history and returns the model's response. When
	// allowTool is true the retriever tool is bound and the response may
	// carry a pending tool call instead of an answer.
	Chat(ctx context.Context, messages []types.Message, allowTool bool) (types.Message, types.TokenUsage, error)
}

// Client is the production ChatModel over an OpenAI-compatible API.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewClient creates a chat client from configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Chat implements ChatModel.
func (c *Client) Chat(ctx context.Context, messages []types.Message, allowTool bool) (types.Message, types.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    toOpenAIMessages(messages),
	}
	if allowTool {
		req.Tools = []openai.Tool{retrieverTool()}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return types.Message{}, types.TokenUsage{}, &types.ModelInvocationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return types.Message{}, types.TokenUsage{}, &types.ModelInvocationError{Err: fmt.Errorf("no choices returned")}
	}

	usage := types.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	choice := resp.Choices[0].Message
	out := types.Message{
		Kind:    types.KindAI,
		Content: choice.Content,
	}

	if len(choice.ToolCalls) > 0 {
		tc := choice.ToolCalls[0]
		var args struct {
			UserQuery string `json:"user_query"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return types.Message{}, usage, &types.ModelInvocationError{
				Err: fmt.Errorf("malformed tool arguments %q: %w", tc.Function.Arguments, err),
			}
		}
		out.ToolCall = &types.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Query: args.UserQuery,
		}
	}

	c.logger.Debug("model call completed",
		zap.String("model", c.model),
		zap.Bool("tool_requested", out.ToolCall != nil),
		zap.Int("total_tokens", usage.TotalTokens))

	return out, usage, nil
}

// retrieverTool describes the single tool bound on the first model call.
func retrieverTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        ToolRetrieveContext,
			Description: "Retrieve relevant table schema descriptions and sample SQL queries for the user question.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_query": map[string]any{
						"type":        "string",
						"description": "The user question to retrieve context for.",
					},
				},
				"required": []string{"user_query"},
			},
		},
	}
}

// toOpenAIMessages converts the tagged message history to the wire format.
func toOpenAIMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Kind {
		case types.KindSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		case types.KindHuman:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case types.KindAI:
			m := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			if msg.ToolCall != nil {
				args, _ := json.Marshal(map[string]string{"user_query": msg.ToolCall.Query})
				m.ToolCalls = []openai.ToolCall{{
					ID:   msg.ToolCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      msg.ToolCall.Name,
						Arguments: string(args),
					},
				}}
			}
			out = append(out, m)
		case types.KindTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}
