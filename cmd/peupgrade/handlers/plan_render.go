package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/provisioning/upgrade"
)

var (
	planColorBlue   = lipgloss.Color("#3b82f6")
	planColorDim    = lipgloss.Color("#6b7280")
	planColorWhite  = lipgloss.Color("#f9fafb")
	planColorYellow = lipgloss.Color("#eab308")
)

var (
	planTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(planColorWhite)

	planSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(planColorBlue)

	planDimStyle = lipgloss.NewStyle().
			Foreground(planColorDim)

	planWarnStyle = lipgloss.NewStyle().
			Foreground(planColorYellow)
)

// useStyles reports whether stdout is a terminal.
func useStyles() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// renderPlan formats a plan for people. Styles apply only when styled is set.
func renderPlan(plan *provisioning.Plan, steps []upgrade.Step, styled bool) string {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	current := plan.CurrentVersion
	if current == "" {
		current = "unknown"
	}

	b.WriteString("\n")
	b.WriteString(style(planTitleStyle, fmt.Sprintf("  peupgrade plan: %s → %s (%s)", current, plan.Version, plan.Architecture())))
	b.WriteString("\n")
	b.WriteString(style(planDimStyle, "  "+strings.Repeat("═", 40)))
	b.WriteString("\n\n")

	b.WriteString(style(planSectionStyle, "  Nodes"))
	b.WriteString("\n")
	for _, n := range plan.Topology.Nodes() {
		group := n.Group
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(&b, "    %-32s %-17s group %-6s %s\n", n.Name(), n.Role, group, n.Target.Protocol)
	}

	b.WriteString("\n")
	b.WriteString(style(planSectionStyle, "  Artifact"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "    %s\n", plan.Artifact.URL)
	fmt.Fprintf(&b, "    %s (%s)\n", plan.Tarball, plan.DownloadMode)

	b.WriteString("\n")
	b.WriteString(style(planSectionStyle, "  Steps"))
	b.WriteString("\n")
	var phase upgrade.State
	for i, s := range steps {
		if s.Phase != phase {
			phase = s.Phase
			b.WriteString(style(planDimStyle, fmt.Sprintf("    %s", phase)))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "    %2d. %s: %s\n", i+1, s.Action, strings.Join(s.Nodes, ", "))
	}

	if len(plan.Warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(style(planSectionStyle, "  Warnings"))
		b.WriteString("\n")
		for _, w := range plan.Warnings {
			b.WriteString(style(planWarnStyle, "    ! "+w.Message))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	return b.String()
}
