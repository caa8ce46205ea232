package session

import (
	"strings"
	"testing"

	"github.com/sqlsage/sqlsage/internal/types"
)

func assistantTurnWithResult() types.ConversationTurn {
	return types.ConversationTurn{
		Role:     "assistant",
		Content:  "Average salary per department.",
		SQLQuery: "SELECT dept_name, AVG(salary) FROM salaries GROUP BY dept_name;",
		Result: &types.ResultTable{
			Columns: []string{"dept_name", "avg_salary"},
			Rows:    [][]any{{"Sales", 80000.0}},
		},
	}
}

func TestChartKind_Valid(t *testing.T) {
	for _, kind := range []ChartKind{ChartBar, ChartLine, ChartScatter, ChartPie, ChartArea} {
		if !kind.Valid() {
			t.Errorf("%q.Valid() = false", kind)
		}
	}
	for _, kind := range []ChartKind{"", "histogram", "Bar"} {
		if kind.Valid() {
			t.Errorf("%q.Valid() = true", kind)
		}
	}
}

func TestSession_AppendAndClear(t *testing.T) {
	sess := New()
	if sess.ID == "" {
		t.Fatal("New() produced empty ID")
	}

	sess.Append(types.ConversationTurn{Role: "user", Content: "hi"})
	sess.Append(assistantTurnWithResult())
	if err := sess.SetChart(1, ChartSpec{Visible: true, Kind: ChartBar, XColumn: "dept_name", YColumn: "avg_salary"}); err != nil {
		t.Fatalf("SetChart() error = %v", err)
	}

	if len(sess.Turns) != 2 || len(sess.Charts) != 1 {
		t.Fatalf("turns = %d, charts = %d, want 2 and 1", len(sess.Turns), len(sess.Charts))
	}

	sess.Clear()

	if len(sess.Turns) != 0 {
		t.Errorf("turns after Clear() = %d, want 0", len(sess.Turns))
	}
	if len(sess.Charts) != 0 {
		t.Errorf("charts after Clear() = %d, want 0", len(sess.Charts))
	}
}

func TestSession_SetChartValidation(t *testing.T) {
	sess := New()
	sess.Append(types.ConversationTurn{Role: "user", Content: "hi"})
	sess.Append(assistantTurnWithResult())

	tests := []struct {
		name    string
		index   int
		spec    ChartSpec
		wantErr string
	}{
		{"negative index", -1, ChartSpec{Visible: true, Kind: ChartBar}, "does not exist"},
		{"out of range", 2, ChartSpec{Visible: true, Kind: ChartBar}, "does not exist"},
		{"no result on turn", 0, ChartSpec{Visible: true, Kind: ChartBar}, "no tabular result"},
		{"bad kind", 1, ChartSpec{Visible: true, Kind: "sparkline"}, "unsupported chart kind"},
		{"ok", 1, ChartSpec{Visible: true, Kind: ChartLine, XColumn: "dept_name", YColumn: "avg_salary"}, ""},
		{"hide needs no validation", 0, ChartSpec{Visible: false}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sess.SetChart(tt.index, tt.spec)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("SetChart() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("SetChart() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
