package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sqlsage/sqlsage/internal/agent"
	"github.com/sqlsage/sqlsage/internal/executor"
	"github.com/sqlsage/sqlsage/internal/types"
	"github.com/sqlsage/sqlsage/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive terminal chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func runChat() error {
	agentInstance, pipeline, err := buildAgent()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	exec, err := buildExecutor()
	if err != nil {
		return err
	}
	if exec != nil {
		defer exec.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr := exec.Ping(ctx)
		cancel()
		if pingErr != nil {
			fmt.Printf("Warning: could not reach the database: %v\n", pingErr)
			fmt.Println("Continuing without query execution")
			exec.Close()
			exec = nil
		}
	}

	turnTimeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	process := func(question string) tea.Cmd {
		return processQuestionCmd(agentInstance, exec, turnTimeout, question)
	}

	if err := ui.Run(process, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error running UI: %v\n", err)
		os.Exit(1)
	}
	return nil
}

// processQuestionCmd runs one full turn off the UI goroutine and reports the
// outcome as a single event.
func processQuestionCmd(agentInstance *agent.Agent, exec *executor.Executor, timeout time.Duration, question string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := agentInstance.Run(ctx, question)
		if err != nil {
			return types.TurnEvent{State: types.StateError, Error: err}
		}

		turn := &types.ConversationTurn{
			Role:        "assistant",
			Content:     result.Response.Explanation,
			SQLQuery:    result.Response.SQLQuery,
			Explanation: result.Response.Explanation,
			Documents:   result.Documents,
			Usage:       &result.Usage,
			CreatedAt:   time.Now().UTC(),
		}

		if exec != nil && result.Response.SQLQuery != "" {
			table, execErr := exec.Execute(ctx, result.Response.SQLQuery)
			if execErr != nil {
				turn.Error = execErr.Error()
			} else {
				turn.Result = table
			}
		}

		return types.TurnEvent{State: types.StateResponding, Turn: turn}
	}
}
