package wizard

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lockplane/cfplane/internal/config"
	"github.com/lockplane/cfplane/internal/connect"
)

const title = "cfplane init"

// New creates a wizard that writes its files under dir.
func New(dir string) WizardModel {
	return WizardModel{
		state:        StateWelcome,
		dir:          dir,
		tester:       TestConnection,
		environments: []EnvironmentInput{},
		errors:       make(map[string]string),
		inputs:       []textinput.Model{},
	}
}

// Init initializes the wizard (Bubble Tea Init)
func (m WizardModel) Init() tea.Cmd {
	return m.checkForExistingConfig
}

// Update handles state transitions (Bubble Tea Update)
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			// q is a valid character while typing connection details.
			if m.state != StateConnectionDetails {
				return m, tea.Quit
			}
			return m.handleTextInput(msg)

		case "enter":
			return m.handleEnter()

		case "up":
			return m.handleUp()

		case "down":
			return m.handleDown()

		case "tab":
			return m.handleTab()

		default:
			return m.handleTextInput(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case connectionTestResultMsg:
		m.testingConnection = false
		if msg.err != nil {
			m.connectionError = msg.err
			m.connectionTestResult = "failed"
		} else {
			m.connectionTestResult = "success"
			m.connectionError = nil
		}
		return m, nil

	case fileCreationResultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = StateError
			return m, nil
		}
		m.result = msg.result
		m.state = StateDone
		return m, nil

	case existingConfigMsg:
		if msg.path != "" {
			m.existingConfigPath = msg.path
			m.existingEnvNames = msg.envNames
			m.state = StateCheckExisting
		} else {
			m.state = StateWelcome
		}
		return m, nil
	}

	return m, nil
}

// View renders the wizard UI (Bubble Tea View)
func (m WizardModel) View() string {
	switch m.state {
	case StateWelcome:
		return m.renderWelcome()
	case StateCheckExisting:
		return m.renderCheckExisting()
	case StateBackend:
		return m.renderBackend()
	case StateConnectionDetails:
		return m.renderConnectionDetails()
	case StateTestConnection:
		return m.renderTestConnection()
	case StateAddAnother:
		return m.renderAddAnother()
	case StateSummary:
		return m.renderSummary()
	case StateCreating:
		return m.renderCreating()
	case StateDone:
		return m.renderDone()
	case StateError:
		return m.renderError()
	default:
		return "Unknown state"
	}
}

// State returns the current step.
func (m WizardModel) State() WizardState { return m.state }

// Result returns what was written once the wizard is done.
func (m WizardModel) Result() *InitResult { return m.result }

// Err returns the error that ended the wizard, if any.
func (m WizardModel) Err() error { return m.err }

// State transition handlers

func (m WizardModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateWelcome, StateCheckExisting:
		m.state = StateBackend
		return m, nil

	case StateBackend:
		m.currentEnv.Backend = Backends[m.backendIndex].ID
		m.state = StateConnectionDetails
		m.initializeInputs()
		return m, nil

	case StateConnectionDetails:
		if err := m.collectInputValues(); err != nil {
			return m, nil
		}
		m.state = StateTestConnection
		m.testingConnection = true
		return m, m.testConnection()

	case StateTestConnection:
		switch m.connectionTestResult {
		case "success":
			m.state = StateAddAnother
			m.environments = append(m.environments, m.currentEnv)
			m.currentEnv = EnvironmentInput{}
			m.connectionTestResult = ""
			m.addAnotherChoice = 1
			return m, nil
		case "failed":
			switch m.retryChoice {
			case 0: // Retry
				m.connectionTestResult = ""
				m.connectionError = nil
				m.testingConnection = true
				return m, m.testConnection()
			case 1: // Edit
				m.state = StateConnectionDetails
				m.connectionTestResult = ""
				m.connectionError = nil
				m.retryChoice = 0
				return m, nil
			case 2: // Quit
				return m, tea.Quit
			}
		}
		return m, nil

	case StateAddAnother:
		if m.addAnotherChoice == 0 {
			m.state = StateBackend
			m.backendIndex = 0
			return m, nil
		}
		m.state = StateSummary
		return m, nil

	case StateSummary:
		m.state = StateCreating
		return m, m.createFiles()

	case StateDone, StateError:
		return m, tea.Quit
	}

	return m, nil
}

func (m WizardModel) handleUp() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateBackend:
		if m.backendIndex > 0 {
			m.backendIndex--
		}
	case StateConnectionDetails:
		if m.focusIndex > 0 {
			m.focusIndex--
			m.updateInputFocus()
		}
	case StateTestConnection:
		if m.connectionTestResult == "failed" && m.retryChoice > 0 {
			m.retryChoice--
		}
	case StateAddAnother:
		m.addAnotherChoice = 0
	}
	return m, nil
}

func (m WizardModel) handleDown() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateBackend:
		if m.backendIndex < len(Backends)-1 {
			m.backendIndex++
		}
	case StateConnectionDetails:
		if m.focusIndex < len(m.inputs)-1 {
			m.focusIndex++
			m.updateInputFocus()
		}
	case StateTestConnection:
		if m.connectionTestResult == "failed" && m.retryChoice < 2 {
			m.retryChoice++
		}
	case StateAddAnother:
		m.addAnotherChoice = 1
	}
	return m, nil
}

func (m WizardModel) handleTab() (tea.Model, tea.Cmd) {
	if m.state == StateConnectionDetails && len(m.inputs) > 0 {
		m.focusIndex = (m.focusIndex + 1) % len(m.inputs)
		m.updateInputFocus()
	}
	return m, nil
}

func (m WizardModel) handleTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StateConnectionDetails && len(m.inputs) > 0 {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}
	return m, nil
}

// Input management

func (m *WizardModel) initializeInputs() {
	m.inputs = []textinput.Model{}
	m.focusIndex = 0
	m.errors = make(map[string]string)

	switch m.currentEnv.Backend {
	case connect.BackendREST:
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", "production", false),
			m.makeInput("REST gateway URL", "http://localhost:8080", false),
		)
	case connect.BackendSQLite:
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", "local", false),
			m.makeInput("Cluster file path", ".cfplane/cluster.db", false),
		)
	case connect.BackendPostgres:
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", "ci", false),
			m.makeInput("Host", "localhost", false),
			m.makeInput("Port", "5432", false),
			m.makeInput("Database", "cfplane", false),
			m.makeInput("User", "cfplane", false),
			m.makeInput("Password", "cfplane", true),
		)
	case connect.BackendLibSQL:
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", "staging", false),
			m.makeInput("Database URL", "libsql://[name]-[org].turso.io", false),
			m.makeInput("Auth token", "", true),
		)
	}

	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
}

func (m *WizardModel) makeInput(placeholder, value string, isPassword bool) textinput.Model {
	input := textinput.New()
	input.Placeholder = placeholder
	input.SetValue(value)
	if isPassword {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '*'
	}
	return input
}

func (m *WizardModel) updateInputFocus() {
	for i := range m.inputs {
		if i == m.focusIndex {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *WizardModel) collectInputValues() error {
	m.errors = make(map[string]string)
	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = strings.TrimSpace(input.Value())
	}

	want := map[connect.Backend]int{
		connect.BackendREST:     2,
		connect.BackendSQLite:   2,
		connect.BackendPostgres: 6,
		connect.BackendLibSQL:   3,
	}[m.currentEnv.Backend]
	if len(values) < want {
		return fmt.Errorf("not enough inputs")
	}

	m.currentEnv.Name = values[0]
	if err := ValidateEnvironmentName(m.currentEnv.Name); err != nil {
		m.errors["name"] = err.Error()
		return err
	}

	switch m.currentEnv.Backend {
	case connect.BackendREST:
		m.currentEnv.URL = values[1]
	case connect.BackendSQLite:
		m.currentEnv.FilePath = values[1]
	case connect.BackendPostgres:
		m.currentEnv.Host = values[1]
		m.currentEnv.Port = values[2]
		m.currentEnv.Database = values[3]
		m.currentEnv.User = values[4]
		m.currentEnv.Password = values[5]
		if err := ValidatePort(m.currentEnv.Port); err != nil {
			m.errors["port"] = err.Error()
			return err
		}
	case connect.BackendLibSQL:
		m.currentEnv.URL = values[1]
		m.currentEnv.AuthToken = values[2]
	}

	if err := ValidateClusterURL(BuildClusterURL(m.currentEnv), m.currentEnv.Backend); err != nil {
		m.errors["url"] = err.Error()
		return err
	}
	return nil
}

// Message types for async operations

type connectionTestResultMsg struct {
	err error
}

func (m WizardModel) testConnection() tea.Cmd {
	tester := m.tester
	env := m.currentEnv
	if env.Backend == connect.BackendSQLite && !filepath.IsAbs(env.FilePath) && !strings.Contains(env.FilePath, ":") {
		// Test the file the project will use, not one relative to
		// wherever the wizard was started.
		env.FilePath = filepath.Join(m.dir, env.FilePath)
	}
	clusterURL := BuildClusterURL(env)
	return func() tea.Msg {
		return connectionTestResultMsg{err: tester(clusterURL)}
	}
}

type fileCreationResultMsg struct {
	result *InitResult
	err    error
}

func (m WizardModel) createFiles() tea.Cmd {
	dir := m.dir
	envs := append([]EnvironmentInput(nil), m.environments...)
	return func() tea.Msg {
		result, err := GenerateFiles(dir, envs)
		return fileCreationResultMsg{result: result, err: err}
	}
}

type existingConfigMsg struct {
	path     string
	envNames []string
}

func (m WizardModel) checkForExistingConfig() tea.Msg {
	configPath := filepath.Join(m.dir, config.FileName)
	cfg, err := config.ReadConfig(configPath)
	if err != nil || len(cfg.Environments) == 0 {
		return existingConfigMsg{}
	}

	names := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return existingConfigMsg{path: configPath, envNames: names}
}

// View renderers

// writeHeader writes the title and, for numbered screens, the step line.
func (m WizardModel) writeHeader(b *strings.Builder) {
	b.WriteString(renderHeader(title))
	if step := renderStep(m.state); step != "" {
		b.WriteString("\n")
		b.WriteString(step)
	}
	b.WriteString("\n\n")
}

func (m WizardModel) renderWelcome() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString("Welcome! Let's connect cfplane to your cluster.\n\n")
	b.WriteString(renderInfo("This wizard will help you:\n" +
		"  • Choose a live cluster or a local rehearsal cluster\n" +
		"  • Check that the cluster answers\n" +
		"  • Create environment-specific config files"))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to continue, q to quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderCheckExisting() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSuccess("Found existing configuration!"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Config: %s\n", m.existingConfigPath))
	b.WriteString(fmt.Sprintf("Environments: %s\n", strings.Join(m.existingEnvNames, ", ")))
	b.WriteString("\n\n")
	b.WriteString(renderInfo("New environments are merged into this file.\n" +
		"Reusing a name replaces that environment's .env file."))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to continue, q to quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderBackend() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSectionHeader("Cluster Backend"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Where should plans be applied?"))
	b.WriteString("\n\n")

	for i, opt := range Backends {
		b.WriteString(renderBackendOption(i == m.backendIndex, i+1, opt))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderInfo("Rehearsal clusters store table descriptors in a\nSQL database so plans can be tried before production."))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("↑/↓: navigate  Enter: select  q: quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderConnectionDetails() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSectionHeader("Connection Details"))
	b.WriteString("\n\n")

	opt := Backends[m.backendIndex]
	b.WriteString(fmt.Sprintf("Backend: %s %s\n\n", opt.Icon, opt.DisplayName))

	for i, input := range m.inputs {
		label := input.Placeholder
		if i == m.focusIndex {
			b.WriteString(selectedStyle.Render(iconArrow + " " + label + ":"))
		} else {
			b.WriteString(labelStyle.Render("  " + label + ":"))
		}
		b.WriteString("\n  ")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	if len(m.errors) > 0 {
		keys := make([]string, 0, len(m.errors))
		for k := range m.errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(renderError(m.errors[k]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	switch m.currentEnv.Backend {
	case connect.BackendREST:
		b.WriteString(renderInfo("The gateway applies schema changes itself.\nPre-split creates are not supported over REST."))
	case connect.BackendSQLite:
		b.WriteString(renderInfo("The file is created on first use."))
	}

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("↑/↓ or Tab: navigate  Enter: test connection  ctrl+c: quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderTestConnection() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSectionHeader("Testing Connection"))
	b.WriteString("\n\n")

	switch {
	case m.testingConnection:
		b.WriteString(infoStyle.Render(iconSpinner + " Testing connection..."))
	case m.connectionTestResult == "success":
		b.WriteString(renderSuccess("Connection successful!"))
		b.WriteString("\n\n")
		b.WriteString("Connected to: " + m.currentEnv.Name)
	case m.connectionTestResult == "failed":
		b.WriteString(renderError("Connection failed"))
		b.WriteString("\n\n")
		if m.connectionError != nil {
			b.WriteString(errorStyle.Render("Error: " + m.connectionError.Error()))
		}
		b.WriteString("\n\n")
		b.WriteString("What would you like to do?\n\n")
		b.WriteString(renderOption(m.retryChoice == 0, "Retry connection"))
		b.WriteString("\n")
		b.WriteString(renderOption(m.retryChoice == 1, "Edit connection details"))
		b.WriteString("\n")
		b.WriteString(renderOption(m.retryChoice == 2, "Quit wizard"))
		b.WriteString("\n")
	}

	b.WriteString("\n\n")
	if m.connectionTestResult == "failed" {
		b.WriteString(renderStatusBar("↑/↓: navigate  Enter: select  q: quit"))
	} else {
		b.WriteString(renderStatusBar("Press Enter to continue"))
	}

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderAddAnother() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSectionHeader("Add Another Environment?"))
	b.WriteString("\n\n")
	if n := len(m.environments); n > 0 {
		b.WriteString(fmt.Sprintf("%s Added environment: %s\n\n", iconCheck, m.environments[n-1].Name))
	}
	b.WriteString(renderOption(m.addAnotherChoice == 0, "Add another environment (e.g. staging, production)"))
	b.WriteString("\n")
	b.WriteString(renderOption(m.addAnotherChoice == 1, "Finish and review"))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("↑/↓: navigate  Enter: select  q: quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderSummary() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSectionHeader("Summary"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Ready to create configuration for %d environment(s):\n\n", len(m.environments)))

	for _, env := range m.environments {
		b.WriteString(renderEnvironment(env))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString("This will create:\n")
	b.WriteString("  • " + config.FileName + "\n")
	for _, env := range m.environments {
		b.WriteString(fmt.Sprintf("  • .env.%s\n", env.Name))
	}
	b.WriteString("  • " + StarterSchemaPath + " (if missing)\n")
	b.WriteString("  • Update .gitignore\n")

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to create files, q to quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderCreating() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(infoStyle.Render(iconSpinner + " Writing project files..."))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderDone() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderSuccess("Setup complete!"))
	b.WriteString("\n\n")

	if m.result != nil {
		b.WriteString("Created:\n")
		if m.result.ConfigCreated || m.result.ConfigUpdated {
			b.WriteString(fmt.Sprintf("  %s %s\n", iconCheck, m.result.ConfigPath))
		}
		for _, envFile := range m.result.EnvFiles {
			b.WriteString(fmt.Sprintf("  %s %s\n", iconCheck, envFile))
		}
		if m.result.SchemaFileCreated {
			b.WriteString(fmt.Sprintf("  %s %s\n", iconCheck, m.result.SchemaFile))
		}
		if m.result.GitignoreUpdated {
			b.WriteString(fmt.Sprintf("  %s .gitignore updated\n", iconCheck))
		}
	}

	b.WriteString("\n")
	b.WriteString("Next steps:\n")
	b.WriteString("  1. Run cfplane introspect to see the tables already on the cluster\n")
	b.WriteString("  2. Declare your tables in " + StarterSchemaPath + "\n")
	b.WriteString("  3. Run cfplane plan, then cfplane apply\n")

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to exit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderError() string {
	var b strings.Builder

	m.writeHeader(&b)
	b.WriteString(renderError("An error occurred"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to exit"))

	return borderStyle.Render(b.String())
}

// Run starts the wizard in dir and returns what it wrote.
func Run(dir string) (*InitResult, error) {
	p := tea.NewProgram(New(dir))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(WizardModel)
	if !ok {
		return nil, nil
	}
	return m.result, m.err
}
