package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sqlsage/sqlsage/internal/session"
	"github.com/sqlsage/sqlsage/internal/types"
)

type turnRequest struct {
	Question string `json:"question"`
	// Execute controls whether the generated SQL is run. Defaults to true.
	Execute *bool `json:"execute,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.store.Create()
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// handleClearSession implements the "new chat" action: turns and chart
// toggles return to their initial empty state.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Update(chi.URLParam(r, "sessionID"), func(sess *session.Session) error {
		sess.Clear()
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleTurn processes one user question: agent loop, response parsing,
// optional execution, and appending the resulting turns to the session.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question must not be empty"})
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.store.Get(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	// The agent and executor run outside the store lock so a slow model or
	// database call stalls this turn, not every session.
	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()

	start := time.Now()
	turns := s.runTurn(ctx, req)
	s.metrics.TurnDuration.Observe(time.Since(start).Seconds())

	sess, err := s.store.Update(sessionID, func(sess *session.Session) error {
		for _, turn := range turns {
			sess.Append(turn)
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// runTurn builds the user turn, runs the agent, and builds the assistant
// turn. Failures are recorded inline on the assistant turn.
func (s *Server) runTurn(ctx context.Context, req turnRequest) []types.ConversationTurn {
	userTurn := types.ConversationTurn{
		Role:      "user",
		Content:   req.Question,
		CreatedAt: time.Now().UTC(),
	}

	result, err := s.agent.Run(ctx, req.Question)
	if err != nil {
		s.metrics.Turns.WithLabelValues("error").Inc()
		s.logger.Warn("turn failed", zap.Error(err))
		return []types.ConversationTurn{userTurn, {
			Role:      "assistant",
			Error:     err.Error(),
			CreatedAt: time.Now().UTC(),
		}}
	}

	turn := types.ConversationTurn{
		Role:        "assistant",
		Content:     result.Response.Explanation,
		SQLQuery:    result.Response.SQLQuery,
		Explanation: result.Response.Explanation,
		Documents:   result.Documents,
		Usage:       &result.Usage,
		CreatedAt:   time.Now().UTC(),
	}

	execute := req.Execute == nil || *req.Execute
	if execute && turn.SQLQuery != "" {
		turn.Result, turn.Error = s.executeSQL(ctx, turn.SQLQuery)
	}

	s.metrics.Turns.WithLabelValues("ok").Inc()
	return []types.ConversationTurn{userTurn, turn}
}

// executeSQL runs the generated statement, returning the table or an inline
// error message. The SQL stays visible either way.
func (s *Server) executeSQL(ctx context.Context, sqlQuery string) (*types.ResultTable, string) {
	if s.executor == nil {
		return nil, "database credentials are missing (set DB_USER and DB_CRED)"
	}

	table, err := s.executor.Execute(ctx, sqlQuery)
	if err != nil {
		s.metrics.QueriesRun.WithLabelValues("error").Inc()
		return nil, err.Error()
	}
	s.metrics.QueriesRun.WithLabelValues("ok").Inc()
	return table, ""
}

// handleSetChart records the chart toggle and axis choices for one turn.
func (s *Server) handleSetChart(w http.ResponseWriter, r *http.Request) {
	turnIndex, err := strconv.Atoi(chi.URLParam(r, "turnIndex"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid turn index"})
		return
	}

	var spec session.ChartSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	sess, err := s.store.Update(chi.URLParam(r, "sessionID"), func(sess *session.Session) error {
		return sess.SetChart(turnIndex, spec)
	})
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
