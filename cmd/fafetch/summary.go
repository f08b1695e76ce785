package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/fa_fetcher/internal/fetcher"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7A8291"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E9F0")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A3BE8C"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B"))
)

type summaryRow struct {
	Label string
	Value string
}

func renderRows(rows []summaryRow) string {
	labelWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		label := row.Label + strings.Repeat(" ", labelWidth-lipgloss.Width(row.Label))
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(row.Value)))
	}
	return lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true, false).Render(strings.Join(lines, "\n"))
}

func renderRun(run fetcher.Run) string {
	rows := []summaryRow{
		{Label: "Run", Value: run.ID},
		{Label: "Requested", Value: fmt.Sprintf("%d", run.Requested)},
		{Label: "Succeeded", Value: fmt.Sprintf("%d", run.Succeeded)},
		{Label: "Failed", Value: fmt.Sprintf("%d", len(run.Failures))},
		{Label: "Duration", Value: run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()},
	}
	var b strings.Builder
	b.WriteString(renderRows(rows))
	for _, f := range run.Failures {
		b.WriteString("\n")
		b.WriteString(warnStyle.Render(fmt.Sprintf("✗ %s (%s v%s) %s: %s", f.Name, f.Style, f.Version, f.Code, f.Error)))
	}
	if len(run.Failures) == 0 && run.Requested > 0 {
		b.WriteString("\n")
		b.WriteString(okStyle.Render("✓ all icons fetched"))
	}
	return b.String()
}
