package wizard

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/lockplane/cfplane/internal/connect"
)

// Live clusters and rehearsal stores get their own colors so it is always
// clear where a plan would land.
var (
	colorAccent    = lipgloss.Color("37")  // teal
	colorLive      = lipgloss.Color("208") // orange
	colorRehearsal = lipgloss.Color("73")  // sea green
	colorSuccess   = lipgloss.Color("42")
	colorError     = lipgloss.Color("160")
	colorInfo      = lipgloss.Color("110")
	colorMuted     = lipgloss.Color("244")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	stepStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true).
				Underline(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(colorInfo)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	unselectedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	liveBadgeStyle = lipgloss.NewStyle().
			Foreground(colorLive).
			Bold(true)

	rehearsalBadgeStyle = lipgloss.NewStyle().
				Foreground(colorRehearsal)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	noteStyle = lipgloss.NewStyle().
			Foreground(colorInfo).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(colorInfo).
			PaddingLeft(1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)

const (
	iconTable   = "▦"
	iconSuccess = "✓"
	iconError   = "✗"
	iconCheck   = "✓"
	iconSpinner = "…"
	iconArrow   = "›"
)

// wizardSteps numbers the screens a user moves through. States not listed
// (errors, the existing-config notice) show no step.
var wizardSteps = map[WizardState]string{
	StateWelcome:           "Welcome",
	StateBackend:           "Cluster backend",
	StateConnectionDetails: "Connection",
	StateTestConnection:    "Connection test",
	StateAddAnother:        "Environments",
	StateSummary:           "Review",
	StateCreating:          "Write files",
	StateDone:              "Done",
}

var stepOrder = []WizardState{
	StateWelcome, StateBackend, StateConnectionDetails, StateTestConnection,
	StateAddAnother, StateSummary, StateCreating, StateDone,
}

func renderHeader(text string) string {
	return headerStyle.Render(iconTable + " " + text)
}

// renderStep shows progress through the wizard, e.g. "Step 2 of 8 · Cluster backend".
func renderStep(state WizardState) string {
	name, ok := wizardSteps[state]
	if !ok {
		return ""
	}
	for i, s := range stepOrder {
		if s == state {
			return stepStyle.Render(fmt.Sprintf("Step %d of %d · %s", i+1, len(stepOrder), name))
		}
	}
	return ""
}

func renderSectionHeader(text string) string {
	return sectionHeaderStyle.Render(text)
}

func renderSuccess(text string) string {
	return successStyle.Render(iconSuccess + " " + text)
}

func renderError(text string) string {
	return errorStyle.Render(iconError + " " + text)
}

func renderInfo(text string) string {
	return noteStyle.Render(text)
}

func renderOption(selected bool, text string) string {
	if selected {
		return selectedStyle.Render(iconArrow + " " + text)
	}
	return unselectedStyle.Render("  " + text)
}

// renderBadge marks whether a backend mutates a live cluster or a
// rehearsal store.
func renderBadge(backend connect.Backend) string {
	if backend == connect.BackendREST {
		return liveBadgeStyle.Render("[live]")
	}
	return rehearsalBadgeStyle.Render("[rehearsal]")
}

func renderBackendOption(selected bool, n int, opt BackendOption) string {
	line := fmt.Sprintf("%d. %s %s (%s) ", n, opt.Icon, opt.DisplayName, opt.Description)
	return renderOption(selected, line) + renderBadge(opt.ID)
}

// renderEnvironment is one summary line for a configured environment.
func renderEnvironment(env EnvironmentInput) string {
	return fmt.Sprintf("  • %s (%s) %s", env.Name, describeBackend(env.Backend), renderBadge(env.Backend))
}

func renderStatusBar(text string) string {
	return statusBarStyle.Render(text)
}
