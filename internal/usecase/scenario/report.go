package scenario

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func Render(rep Report) string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Scenario " + rep.Name))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Units"))
	builder.WriteString("\n")
	for _, unit := range rep.Units {
		tx := firstNonEmpty(shortID(unit.TxID), "none")
		if unit.Savepoint {
			tx += " (savepoint)"
		}
		line := fmt.Sprintf("%s%s [%s] tx=%s", strings.Repeat("  ", unit.Depth), unit.Path, unit.Propagation, tx)
		if unit.Wrote {
			line += " wrote"
		}
		switch {
		case unit.Err == nil:
			builder.WriteString(okStyle.Render(line + " ok"))
		case unit.Recovered:
			builder.WriteString(dimStyle.Render(line + " recovered: " + unit.Err.Error()))
		default:
			builder.WriteString(failStyle.Render(line + " failed: " + unit.Err.Error()))
		}
		builder.WriteString("\n")
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Hooks"))
	builder.WriteString("\n")
	if len(rep.Hooks) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	}
	for _, hook := range rep.Hooks {
		builder.WriteString(fmt.Sprintf("- %s %s\n", hook.Unit, hook.Event))
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Persisted"))
	builder.WriteString("\n")
	if len(rep.Persisted) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	}
	for _, message := range rep.Persisted {
		builder.WriteString("- " + message + "\n")
	}
	return builder.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
