package impact

import (
	"fmt"
	"strings"

	"github.com/felipestanzani/beyondsight/internal/display"
)

// Summary returns a brief summary of the report
func (r *Report) Summary() string {
	types, members := 0, 0
	for _, f := range r.Files {
		types += len(f.Types)
		for _, t := range f.Types {
			members += len(t.Members)
		}
	}
	return fmt.Sprintf("Target: %s, Files: %d, Types: %d, Members: %d",
		r.Target.label(), len(r.Files), types, members)
}

func (t Target) label() string {
	switch t.Kind {
	case "field":
		return t.ClassName + "." + t.Name
	case "method":
		return t.ClassName + "." + t.Signature
	}
	return t.Name
}

// FormatTree formats the report as a file/type/member tree
func (r *Report) FormatTree() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("📍 %s impact: %s\n", r.Target.Kind, r.Target.label()))
	if r.Truncated {
		sb.WriteString("⚠️  result truncated at the configured node cap\n")
	}
	sb.WriteString("\n")

	for fi, f := range r.Files {
		lastFile := fi == len(r.Files)-1
		sb.WriteString(fmt.Sprintf("%s %s\n", display.Branch(lastFile), display.ShortPath(f.AbsolutePath)))
		fileIndent := display.Indent(lastFile)

		for ti, t := range f.Types {
			lastType := ti == len(f.Types)-1
			sb.WriteString(fmt.Sprintf("%s%s %s :%d\n", fileIndent, display.Branch(lastType), t.Name, t.LineNumber))
			typeIndent := fileIndent + display.Indent(lastType)

			items := len(t.Fields) + len(t.Members)
			i := 0
			for _, fld := range t.Fields {
				i++
				sb.WriteString(fmt.Sprintf("%s%s field %s :%d\n", typeIndent, display.Branch(i == items), fld.Name, fld.LineNumber))
			}
			for _, m := range t.Members {
				i++
				last := i == items
				sb.WriteString(fmt.Sprintf("%s%s %s :%d\n", typeIndent, display.Branch(last), m.Signature, m.LineNumber))
				memberIndent := typeIndent + display.Indent(last)
				for _, c := range m.CalledMethods {
					sb.WriteString(fmt.Sprintf("%s    calls %s :%d\n", memberIndent, c.Signature, c.LineNumber))
				}
				for _, rf := range m.ReadFields {
					sb.WriteString(fmt.Sprintf("%s    reads %s :%d\n", memberIndent, rf.Name, rf.LineNumber))
				}
				for _, wf := range m.WrittenFields {
					sb.WriteString(fmt.Sprintf("%s    writes %s :%d\n", memberIndent, wf.Name, wf.LineNumber))
				}
			}
		}
	}
	return sb.String()
}

// FormatMarkdown formats the report as markdown
func (r *Report) FormatMarkdown() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Change impact: %s\n\n", r.Target.label()))
	if r.Truncated {
		sb.WriteString("> Result truncated at the configured node cap.\n\n")
	}

	for _, f := range r.Files {
		sb.WriteString(fmt.Sprintf("### %s\n\n", f.Name))
		sb.WriteString(fmt.Sprintf("**Path:** `%s`\n\n", f.AbsolutePath))
		for _, t := range f.Types {
			sb.WriteString(fmt.Sprintf("#### %s (line %d)\n\n", t.Name, t.LineNumber))
			if len(t.Fields) > 0 {
				sb.WriteString("| Field | Line |\n")
				sb.WriteString("|-------|------|\n")
				for _, fld := range t.Fields {
					sb.WriteString(fmt.Sprintf("| %s | %d |\n", fld.Name, fld.LineNumber))
				}
				sb.WriteString("\n")
			}
			if len(t.Members) > 0 {
				sb.WriteString("| Method | Line | Calls | Reads | Writes |\n")
				sb.WriteString("|--------|------|-------|-------|--------|\n")
				for _, m := range t.Members {
					sb.WriteString(fmt.Sprintf("| `%s` | %d | %s | %s | %s |\n",
						m.Signature, m.LineNumber, callList(m.CalledMethods),
						fieldList(m.ReadFields), fieldList(m.WrittenFields)))
				}
				sb.WriteString("\n")
			}
			if len(t.Fields) == 0 && len(t.Members) == 0 {
				sb.WriteString("_No impacted members_\n\n")
			}
		}
	}
	return sb.String()
}

// FormatTree formats a flat method list
func (l *MethodList) FormatTree() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Methods (%d)\n", len(l.Methods)))
	for i, m := range l.Methods {
		path := m.FilePath
		if path == "" {
			path = "(unknown file)"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", display.Branch(i == len(l.Methods)-1), m.Signature, display.ShortPath(path)))
	}
	if l.Truncated {
		sb.WriteString("⚠️  result truncated at the configured node cap\n")
	}
	return sb.String()
}

// FormatMarkdown formats a flat method list as a markdown table
func (l *MethodList) FormatMarkdown() string {
	var sb strings.Builder
	sb.WriteString("| Method | Signature | File |\n")
	sb.WriteString("|--------|-----------|------|\n")
	for _, m := range l.Methods {
		sb.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n", m.Name, m.Signature, m.FilePath))
	}
	return sb.String()
}

func callList(refs []CallRef) string {
	if len(refs) == 0 {
		return "-"
	}
	parts := make([]string, len(refs))
	for i, c := range refs {
		parts[i] = fmt.Sprintf("`%s`:%d", c.Signature, c.LineNumber)
	}
	return strings.Join(parts, ", ")
}

func fieldList(refs []FieldRef) string {
	if len(refs) == 0 {
		return "-"
	}
	parts := make([]string, len(refs))
	for i, f := range refs {
		parts[i] = fmt.Sprintf("%s:%d", f.Name, f.LineNumber)
	}
	return strings.Join(parts, ", ")
}
