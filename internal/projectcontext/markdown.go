package projectcontext

import (
	"context"
	"fmt"
	"strings"
)

const (
	timestampLayout = "1/2/2006, 3:04:05 PM"
	timeOnlyLayout  = "3:04:05 PM"
)

// GenerateMarkdown compiles the snapshot and renders it as a status report.
func (c *Compiler) GenerateMarkdown(ctx context.Context, userID string) (string, error) {
	pc, err := c.Compile(ctx, userID)
	if err != nil {
		return "", err
	}
	return renderMarkdown(pc), nil
}

func renderMarkdown(pc *ProjectContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Studio Status - %s\n\n", pc.Timestamp.Format(timestampLayout))

	b.WriteString("## 🚨 Immediate Attention Required\n")
	if len(pc.UrgentItems) == 0 {
		b.WriteString("No urgent items")
	} else {
		lines := make([]string, len(pc.UrgentItems))
		for i, item := range pc.UrgentItems {
			line := fmt.Sprintf("- **%s**: %s", item.Title, item.Description)
			if item.DueDate != "" {
				line += fmt.Sprintf(" (Due: %s)", item.DueDate)
			}
			lines[i] = line
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString("\n\n")

	b.WriteString("## 📋 Active Projects\n")
	if len(pc.Projects) == 0 {
		b.WriteString("No active projects")
	} else {
		lines := make([]string, len(pc.Projects))
		for i, p := range pc.Projects {
			line := fmt.Sprintf("- **%s**: %d%% complete", p.Name, p.Completion)
			if p.Deadline != "" {
				line += fmt.Sprintf(", deadline %s", p.Deadline)
			}
			lines[i] = line
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString("\n\n")

	b.WriteString("## Communications Summary\n")
	if pc.Communications == nil {
		b.WriteString("- No communication data available")
	} else {
		fmt.Fprintf(&b, "- %d unread emails\n", pc.Communications.UnreadCount)
		fmt.Fprintf(&b, "- %d urgent items requiring response", len(pc.Communications.UrgentItems))
	}
	b.WriteString("\n\n")

	b.WriteString("## 💰 Financial Overview\n")
	if pc.Financials == nil {
		b.WriteString("- No financial data available")
	} else {
		fmt.Fprintf(&b, "- Outstanding Receivables: $%.2f\n", pc.Financials.TotalReceivables)
		fmt.Fprintf(&b, "- Outstanding Payables: $%.2f\n", pc.Financials.TotalPayables)
		fmt.Fprintf(&b, "- Overdue Amount: $%.2f (%d invoices)", pc.Financials.OverdueAmount, pc.Financials.OverdueCount)
	}
	b.WriteString("\n\n")

	b.WriteString("## Service Status\n")
	lines := make([]string, len(pc.Services))
	for i, s := range pc.Services {
		lines[i] = fmt.Sprintf("- **%s**: %s (%d items, last sync: %s)",
			s.Name, s.Status, s.ItemCount, s.LastSync.Format(timeOnlyLayout))
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	b.WriteString("---\n")
	fmt.Fprintf(&b, "*Last updated: %s*\n", pc.Timestamp.Format(timestampLayout))
	fmt.Fprintf(&b, "*Total items tracked: %d*", pc.Summary.TotalItems)

	return b.String()
}
