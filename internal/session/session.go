// Package session owns the presentation layer's conversation state: ordered
// turns and per-turn chart preferences, held in an explicit serializable
// object rather than framework-managed globals.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sqlsage/sqlsage/internal/types"
)

// ChartKind enumerates the supported ad hoc chart renderings.
type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
	ChartPie     ChartKind = "pie"
	ChartArea    ChartKind = "area"
)

// Valid reports whether the kind is one of the supported chart types.
func (k ChartKind) Valid() bool {
	switch k {
	case ChartBar, ChartLine, ChartScatter, ChartPie, ChartArea:
		return true
	}
	return false
}

// ChartSpec is a per-turn chart visibility toggle plus axis choices.
type ChartSpec struct {
	Visible bool      `json:"visible"`
	Kind    ChartKind `json:"kind"`
	XColumn string    `json:"x_column"`
	YColumn string    `json:"y_column"`
}

// Session is one user's conversation. It is passed by reference into each
// turn handler and never shared across users.
type Session struct {
	ID        string                   `json:"id"`
	Turns     []types.ConversationTurn `json:"turns"`
	Charts    map[int]ChartSpec        `json:"charts"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// New creates an empty session.
func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		Turns:     make([]types.ConversationTurn, 0),
		Charts:    make(map[int]ChartSpec),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns a copy that is safe to read after the store lock is
// released. Turn elements are copied because Clear reuses the backing array,
// and the Charts map is copied because SetChart mutates it in place.
func (s *Session) Snapshot() *Session {
	turns := make([]types.ConversationTurn, len(s.Turns))
	copy(turns, s.Turns)
	charts := make(map[int]ChartSpec, len(s.Charts))
	for i, spec := range s.Charts {
		charts[i] = spec
	}
	return &Session{
		ID:        s.ID,
		Turns:     turns,
		Charts:    charts,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Append adds a turn to the conversation. Turns are never mutated afterwards.
func (s *Session) Append(turn types.ConversationTurn) {
	s.Turns = append(s.Turns, turn)
	s.UpdatedAt = time.Now().UTC()
}

// Clear resets the conversation and all chart toggles to their initial empty
// state. This is the "new chat" action.
func (s *Session) Clear() {
	s.Turns = s.Turns[:0]
	s.Charts = make(map[int]ChartSpec)
	s.UpdatedAt = time.Now().UTC()
}

// SetChart records the chart preference for the turn at the given index. The
// turn must exist and carry a tabular result.
func (s *Session) SetChart(turnIndex int, spec ChartSpec) error {
	if turnIndex < 0 || turnIndex >= len(s.Turns) {
		return fmt.Errorf("turn %d does not exist", turnIndex)
	}
	if spec.Visible {
		if s.Turns[turnIndex].Result == nil {
			return fmt.Errorf("turn %d has no tabular result to chart", turnIndex)
		}
		if !spec.Kind.Valid() {
			return fmt.Errorf("unsupported chart kind %q", spec.Kind)
		}
	}
	s.Charts[turnIndex] = spec
	s.UpdatedAt = time.Now().UTC()
	return nil
}
