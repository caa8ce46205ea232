package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sqlsage/sqlsage/internal/types"
)

var (
	askNoExec  bool
	askTimeout int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and exit",
	Long: `Generate SQL for a single question, show the retrieved context, and run
the query against the database.

Examples:
  sqlsage ask "list all tables in the database"
  sqlsage ask "what is the average salary by department?"
  sqlsage ask --no-exec "who joined most recently?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&askNoExec, "no-exec", false, "Generate SQL without executing it")
	askCmd.Flags().IntVar(&askTimeout, "timeout", 0, "Overall timeout in seconds (0 uses llm.timeout_seconds)")
}

func runAsk(question string) error {
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	sqlStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	agentInstance, pipeline, err := buildAgent()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	timeout := time.Duration(askTimeout) * time.Second
	if askTimeout <= 0 {
		timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("%s %s\n\n", headerStyle.Render("Question:"), question)
	fmt.Println(infoStyle.Render("Generating SQL..."))

	result, err := agentInstance.Run(ctx, question)
	if err != nil {
		var schemaErr *types.SchemaValidationError
		if errors.As(err, &schemaErr) {
			fmt.Println(errStyle.Render("Model response did not match the expected shape:"))
			fmt.Println(dimStyle.Render(schemaErr.Raw))
		}
		return err
	}

	if len(result.Documents) > 0 {
		fmt.Printf("\n%s\n", headerStyle.Render(fmt.Sprintf("Context (%d documents)", len(result.Documents))))
		fmt.Println(strings.Repeat("-", 72))
		for i, doc := range result.Documents {
			title := doc.Metadata.Type
			if doc.Metadata.TableName != "" {
				title += " " + doc.Metadata.TableName
			}
			fmt.Printf("[%d] %s  %s\n", i+1, infoStyle.Render(title), dimStyle.Render(truncateText(oneLine(doc.PageContent), 90)))
		}
		fmt.Println(strings.Repeat("-", 72))
	}

	fmt.Printf("\n%s\n%s\n", headerStyle.Render("SQL:"), sqlStyle.Render(result.Response.SQLQuery))
	fmt.Printf("\n%s\n%s\n", headerStyle.Render("Explanation:"), result.Response.Explanation)

	if result.Usage.TotalTokens > 0 {
		fmt.Printf("\n%s\n", dimStyle.Render(fmt.Sprintf("tokens: %d prompt / %d completion",
			result.Usage.PromptTokens, result.Usage.CompletionTokens)))
	}

	if askNoExec {
		return nil
	}

	exec, err := buildExecutor()
	if err != nil {
		return err
	}
	if exec == nil {
		fmt.Printf("\n%s\n", warnStyle.Render("Skipping execution: database credentials are missing (set DB_USER and DB_CRED)"))
		return nil
	}
	defer exec.Close()

	fmt.Printf("\n%s\n", infoStyle.Render("Running query..."))
	table, err := exec.Execute(ctx, result.Response.SQLQuery)
	if err != nil {
		fmt.Println(errStyle.Render("Query failed: " + err.Error()))
		return nil
	}

	fmt.Println()
	printResultTable(table)
	return nil
}

// printResultTable writes an aligned text table to stdout.
func printResultTable(table *types.ResultTable) {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	if table.Empty() {
		fmt.Println(dimStyle.Render("(no rows)"))
		return
	}

	const maxRows = 50
	rows := table.Rows
	truncated := false
	if len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}

	widths := make([]int, len(table.Columns))
	for i, col := range table.Columns {
		widths[i] = len(col)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(table.Columns))
		for c := range table.Columns {
			val := "NULL"
			if c < len(row) && row[c] != nil {
				val = fmt.Sprintf("%v", row[c])
			}
			val = truncateText(oneLine(val), 40)
			cells[r][c] = val
			if len(val) > widths[c] {
				widths[c] = len(val)
			}
		}
	}

	printRow := func(vals []string) {
		parts := make([]string, len(vals))
		for i, val := range vals {
			parts[i] = val + strings.Repeat(" ", widths[i]-len(val))
		}
		fmt.Println("  " + strings.Join(parts, "  "))
	}

	printRow(table.Columns)
	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w)
	}
	printRow(rules)
	for _, row := range cells {
		printRow(row)
	}

	if truncated {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  ... %d of %d rows shown", maxRows, len(table.Rows))))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
