// Package display holds terminal rendering helpers shared by the CLI and
// the impact formatters.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felipestanzani/beyondsight/internal/indexer"
	"github.com/felipestanzani/beyondsight/internal/storage"
)

// Branch returns the tree connector for an item.
func Branch(last bool) string {
	if last {
		return "└──"
	}
	return "├──"
}

// Indent returns the prefix continuing a branch below an item.
func Indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}

// ShortPath extracts the last two path components
// e.g., "/src/main/java/Foo.java" -> "java/Foo.java"
func ShortPath(fullPath string) string {
	parts := strings.Split(fullPath, "/")
	if len(parts) <= 2 {
		return fullPath
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

// RiskIcon returns a marker for a risk level.
func RiskIcon(level string) string {
	switch level {
	case "critical":
		return "🔴"
	case "high":
		return "🟠"
	case "medium":
		return "🟡"
	}
	return "🟢"
}

// FormatRiskTable renders risk scores as an aligned table.
func FormatRiskTable(scores []*storage.RiskScore) string {
	if len(scores) == 0 {
		return "No methods found\n"
	}

	width := len("Method")
	for _, s := range scores {
		if len(s.Signature) > width {
			width = len(s.Signature)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  %7s  %-10s  %s\n", width, "Method", "Callers", "Risk", "File")
	fmt.Fprintf(&sb, "%s\n", strings.Repeat("─", width+2+7+2+10+2+4))
	for _, s := range scores {
		file := ShortPath(s.FilePath)
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(&sb, "%-*s  %7d  %s %-8s  %s\n", width, s.Signature, s.DirectCallers, RiskIcon(s.RiskLevel), s.RiskLevel, file)
	}
	return sb.String()
}

// FormatRiskScore renders a single method assessment.
func FormatRiskScore(s *storage.RiskScore) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Method:         %s\n", s.Signature)
	if s.FilePath != "" {
		fmt.Fprintf(&sb, "File:           %s\n", s.FilePath)
	}
	fmt.Fprintf(&sb, "Direct callers: %d\n", s.DirectCallers)
	fmt.Fprintf(&sb, "Total callers:  %d\n", s.TotalCallers)
	fmt.Fprintf(&sb, "Risk level:     %s %s\n", RiskIcon(s.RiskLevel), s.RiskLevel)
	return sb.String()
}

// FormatStatus renders an indexer status.
func FormatStatus(s indexer.Status) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "State:    %s\n", s.State)
	if s.RunID != "" {
		fmt.Fprintf(&sb, "Run:      %s\n", s.RunID)
	}
	if s.Path != "" {
		fmt.Fprintf(&sb, "Path:     %s\n", s.Path)
	}
	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	}
	if s.State == indexer.StateCompleted {
		fmt.Fprintf(&sb, "Graph:    %d nodes, %d edges\n", s.Nodes, s.Edges)
	}
	if s.Error != "" {
		fmt.Fprintf(&sb, "Error:    %s\n", s.Error)
	}
	if s.PersistError != "" {
		fmt.Fprintf(&sb, "Not saved: %s\n", s.PersistError)
	}
	return sb.String()
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
