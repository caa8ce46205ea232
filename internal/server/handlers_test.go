package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlsage/sqlsage/internal/session"
	"github.com/sqlsage/sqlsage/internal/types"
)

type fakeRunner struct {
	result  *types.TurnResult
	err     error
	lastCtx context.Context
}

func (f *fakeRunner) Run(ctx context.Context, _ string) (*types.TurnResult, error) {
	f.lastCtx = ctx
	return f.result, f.err
}

type fakeExecutor struct {
	table *types.ResultTable
	err   error
	calls int
}

func (f *fakeExecutor) Execute(context.Context, string) (*types.ResultTable, error) {
	f.calls++
	return f.table, f.err
}

func okResult() *types.TurnResult {
	return &types.TurnResult{
		Response: types.SQLResponse{
			SQLQuery:    "SHOW TABLES;",
			Explanation: "Lists all tables.",
		},
		Usage: types.TokenUsage{TotalTokens: 42},
	}
}

func newTestServer(t *testing.T, runner TurnRunner, exec QueryExecutor) *httptest.Server {
	t.Helper()
	store := session.NewStore(time.Minute)
	srv := NewWithRegisterer(runner, exec, store, 0, prometheus.NewRegistry(), nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, session.Session) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var sess session.Session
	if resp.StatusCode < 400 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	}
	return resp, sess
}

func TestTurnFlow(t *testing.T) {
	exec := &fakeExecutor{table: &types.ResultTable{
		Columns: []string{"Tables_in_employees"},
		Rows:    [][]any{{"employees"}, {"salaries"}},
	}}
	ts := newTestServer(t, &fakeRunner{result: okResult()}, exec)
	id := createSession(t, ts)

	resp, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "list all tables in the database"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "user", sess.Turns[0].Role)
	assert.Equal(t, "list all tables in the database", sess.Turns[0].Content)

	assistant := sess.Turns[1]
	assert.Equal(t, "assistant", assistant.Role)
	assert.Equal(t, "SHOW TABLES;", assistant.SQLQuery)
	assert.Equal(t, "Lists all tables.", assistant.Explanation)
	assert.Empty(t, assistant.Error)
	require.NotNil(t, assistant.Result)
	assert.Len(t, assistant.Result.Rows, 2)
	assert.Equal(t, 1, exec.calls)
}

func TestTurn_ExecuteFalseSkipsExecution(t *testing.T) {
	exec := &fakeExecutor{}
	ts := newTestServer(t, &fakeRunner{result: okResult()}, exec)
	id := createSession(t, ts)

	execute := false
	resp, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]any{"question": "list all tables", "execute": execute})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 0, exec.calls)
	assert.Nil(t, sess.Turns[1].Result)
}

func TestTurn_AgentError(t *testing.T) {
	runner := &fakeRunner{err: &types.SchemaValidationError{Reason: "missing required field sql_query", Raw: "{}"}}
	ts := newTestServer(t, runner, nil)
	id := createSession(t, ts)

	resp, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "anything"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, sess.Turns, 2)
	assistant := sess.Turns[1]
	assert.Contains(t, assistant.Error, "sql_query")
	assert.Empty(t, assistant.SQLQuery)
}

func TestTurn_ExecutionErrorInline(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("Unknown column 'salray'")}
	ts := newTestServer(t, &fakeRunner{result: okResult()}, exec)
	id := createSession(t, ts)

	resp, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "anything"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assistant := sess.Turns[1]
	// SQL stays visible even when execution fails
	assert.Equal(t, "SHOW TABLES;", assistant.SQLQuery)
	assert.Contains(t, assistant.Error, "Unknown column")
	assert.Nil(t, assistant.Result)
}

func TestTurn_NilExecutor(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{result: okResult()}, nil)
	id := createSession(t, ts)

	_, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "anything"})

	assert.Contains(t, sess.Turns[1].Error, "DB_USER")
}

func TestTurn_Validation(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{result: okResult()}, nil)
	id := createSession(t, ts)

	resp, _ := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, fmt.Sprintf("%s/api/v1/sessions/unknown/turns", ts.URL),
		map[string]string{"question": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTurn_ContextDeadline(t *testing.T) {
	runner := &fakeRunner{result: okResult()}
	ts := newTestServer(t, runner, nil)
	id := createSession(t, ts)

	resp, _ := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "anything"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, runner.lastCtx)
	deadline, ok := runner.lastCtx.Deadline()
	require.True(t, ok, "agent context has no deadline")
	assert.LessOrEqual(t, time.Until(deadline), defaultTurnTimeout)
}

func TestConcurrentReadsAndTurns(t *testing.T) {
	exec := &fakeExecutor{table: &types.ResultTable{
		Columns: []string{"n"},
		Rows:    [][]any{{int64(1)}},
	}}
	ts := newTestServer(t, &fakeRunner{result: okResult()}, exec)
	id := createSession(t, ts)

	turnURL := fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id)
	sessURL := fmt.Sprintf("%s/api/v1/sessions/%s", ts.URL, id)
	chartURL := fmt.Sprintf("%s/api/v1/sessions/%s/turns/1/chart", ts.URL, id)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			body, _ := json.Marshal(map[string]string{"question": "q"})
			resp, err := http.Post(turnURL, "application/json", bytes.NewReader(body))
			if err == nil {
				resp.Body.Close()
			}
			spec, _ := json.Marshal(session.ChartSpec{Visible: true, Kind: session.ChartBar})
			req, _ := http.NewRequest(http.MethodPut, chartURL, bytes.NewReader(spec))
			if resp, err := http.DefaultClient.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}()

	for {
		select {
		case <-done:
			resp, err := http.Get(sessURL)
			require.NoError(t, err)
			var sess session.Session
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
			resp.Body.Close()
			assert.Len(t, sess.Turns, 40)
			return
		default:
			resp, err := http.Get(sessURL)
			require.NoError(t, err)
			var sess session.Session
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}
	}
}

func TestClearSession(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{result: okResult()}, nil)
	id := createSession(t, ts)

	_, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "hi"})
	require.Len(t, sess.Turns, 2)

	resp, cleared := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/clear", ts.URL, id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, cleared.Turns)
	assert.Empty(t, cleared.Charts)
}

func TestSetChart(t *testing.T) {
	exec := &fakeExecutor{table: &types.ResultTable{
		Columns: []string{"dept_name", "avg_salary"},
		Rows:    [][]any{{"Sales", 80000.0}},
	}}
	ts := newTestServer(t, &fakeRunner{result: okResult()}, exec)
	id := createSession(t, ts)

	_, sess := postJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/turns", ts.URL, id),
		map[string]string{"question": "average salary by department"})
	require.Len(t, sess.Turns, 2)

	chartURL := fmt.Sprintf("%s/api/v1/sessions/%s/turns/1/chart", ts.URL, id)
	spec := session.ChartSpec{Visible: true, Kind: session.ChartBar, XColumn: "dept_name", YColumn: "avg_salary"}
	body, _ := json.Marshal(spec)
	req, err := http.NewRequest(http.MethodPut, chartURL, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated session.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	require.Contains(t, updated.Charts, 1)
	assert.Equal(t, session.ChartBar, updated.Charts[1].Kind)

	// Charting a turn without a result is rejected
	badBody, _ := json.Marshal(session.ChartSpec{Visible: true, Kind: session.ChartBar})
	badReq, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/v1/sessions/%s/turns/0/chart", ts.URL, id), bytes.NewReader(badBody))
	require.NoError(t, err)
	badResp, err := http.DefaultClient.Do(badReq)
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{result: okResult()}, nil)
	id := createSession(t, ts)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/sessions/%s", ts.URL, id))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/sessions/%s", ts.URL, id), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/sessions/%s", ts.URL, id))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndIndex(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{result: okResult()}, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
