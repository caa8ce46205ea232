// Package types defines shared data structures for the SQL assistant.
package types

import "time"

// Document metadata type discriminators. These mirror the payloads stored in
// the vector collections.
const (
	DocTypeTablesInfo    = "tables-info"
	DocTypeSampleQueries = "sample-queries"
)

// DocumentMetadata describes where a retrieved document came from.
type DocumentMetadata struct {
	Type       string `json:"type"`
	TableName  string `json:"table_name,omitempty"`
	SQL        string `json:"sql,omitempty"`
	Source     string `json:"source"`
	TokenCount int    `json:"token_count"`
	Index      int    `json:"index"`
}

// Document is a single retrieved context document. Immutable once retrieved.
type Document struct {
	PageContent string           `json:"page_content"`
	Metadata    DocumentMetadata `json:"metadata"`
	Score       float64          `json:"score,omitempty"`
}

// MessageKind discriminates the message variants in an agent run.
type MessageKind string

const (
	KindSystem MessageKind = "system"
	KindHuman  MessageKind = "human"
	KindAI     MessageKind = "ai"
	KindTool   MessageKind = "tool"
)

// ToolCall is a pending tool-invocation request attached to an ai message.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

// Message is one entry in the agent's message history. Consumers must match on
// Kind rather than inspecting field presence.
type Message struct {
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`    // set on ai messages requesting a tool
	ToolCallID string      `json:"tool_call_id,omitempty"` // set on tool messages
}

// TurnPhase tracks tool usage within a single agent run. The phase only ever
// advances: AwaitingDecision -> ToolInvoked -> Done, which makes the
// at-most-one tool invocation guarantee structural.
type TurnPhase int

const (
	PhaseAwaitingDecision TurnPhase = iota
	PhaseToolInvoked
	PhaseDone
)

// String returns a human-readable phase name.
func (p TurnPhase) String() string {
	switch p {
	case PhaseAwaitingDecision:
		return "awaiting-decision"
	case PhaseToolInvoked:
		return "tool-invoked"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// SQLResponse is the validated terminal output of one agent run.
type SQLResponse struct {
	SQLQuery    string `json:"sql_query"`
	Explanation string `json:"explanation"`
}

// TokenUsage carries model usage metadata. Surfaced for display, never used
// for control flow.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage across the model calls of one run.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ResultTable is the row/column materialization of an executed query.
type ResultTable struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the query returned no rows.
func (t *ResultTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// TurnResult is everything one agent run produced.
type TurnResult struct {
	Response  SQLResponse `json:"response"`
	Documents []Document  `json:"documents,omitempty"`
	Messages  []Message   `json:"-"`
	Usage     TokenUsage  `json:"usage"`
	Phase     TurnPhase   `json:"-"`
}

// ConversationTurn is one entry in a session's conversation history.
// Turns are appended and never mutated afterwards.
type ConversationTurn struct {
	Role        string       `json:"role"` // "user" or "assistant"
	Content     string       `json:"content"`
	SQLQuery    string       `json:"sql_query,omitempty"`
	Explanation string       `json:"explanation,omitempty"`
	Documents   []Document   `json:"documents,omitempty"`
	Result      *ResultTable `json:"result,omitempty"`
	Usage       *TokenUsage  `json:"usage,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TurnState represents the current processing state, used by the terminal UI.
type TurnState int

const (
	StateIdle TurnState = iota
	StateThinking
	StateRetrieving
	StateExecuting
	StateResponding
	StateError
)

// String returns a human-readable state name.
func (s TurnState) String() string {
	names := [...]string{
		"Idle",
		"Generating SQL",
		"Retrieving context",
		"Running query",
		"Responding",
		"Error",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// TurnEvent is sent during turn processing to update the terminal UI.
type TurnEvent struct {
	State TurnState
	Turn  *ConversationTurn
	Error error
}
