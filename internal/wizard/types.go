package wizard

import (
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/lockplane/cfplane/internal/connect"
)

// WizardState represents the current step in the wizard flow
type WizardState int

const (
	StateWelcome WizardState = iota
	StateCheckExisting
	StateBackend
	StateConnectionDetails
	StateTestConnection
	StateAddAnother
	StateSummary
	StateCreating
	StateDone
	StateError
)

// WizardModel holds the state for the Bubble Tea wizard
type WizardModel struct {
	state WizardState

	// Project directory the files are written to.
	dir string

	// Existing config detection
	existingConfigPath string
	existingEnvNames   []string

	// Current environment being configured
	currentEnv   EnvironmentInput
	environments []EnvironmentInput

	// Connection testing
	tester               func(url string) error
	testingConnection    bool
	connectionTestResult string
	connectionError      error
	retryChoice          int // 0=retry, 1=edit, 2=quit

	// 0=add another, 1=finish and save
	addAnotherChoice int

	inputs     []textinput.Model
	focusIndex int

	backendIndex int

	errors map[string]string

	result *InitResult
	err    error

	width  int
	height int
}

// EnvironmentInput holds user input for a single environment
type EnvironmentInput struct {
	Name        string
	Description string
	Backend     connect.Backend

	// REST gateway and libSQL
	URL       string
	AuthToken string

	// PostgreSQL fields
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string

	// SQLite fields
	FilePath string
}

// InitResult contains the outcome of running the wizard
type InitResult struct {
	ConfigPath        string
	ConfigCreated     bool
	ConfigUpdated     bool
	EnvFiles          []string
	SchemaFile        string
	SchemaFileCreated bool
	GitignoreUpdated  bool
	EnvExampleCreated bool
	EnvExampleUpdated bool
}

// BackendOption is one selectable cluster backend.
type BackendOption struct {
	ID          connect.Backend
	DisplayName string
	Description string
	Icon        string
}

// Backends lists the choices of the backend step.
var Backends = []BackendOption{
	{
		ID:          connect.BackendREST,
		DisplayName: "REST gateway",
		Description: "live cluster",
		Icon:        "🌐",
	},
	{
		ID:          connect.BackendSQLite,
		DisplayName: "SQLite rehearsal cluster",
		Description: "local, file-based",
		Icon:        "📁",
	},
	{
		ID:          connect.BackendPostgres,
		DisplayName: "PostgreSQL rehearsal cluster",
		Description: "shared, for CI",
		Icon:        "🐘",
	},
	{
		ID:          connect.BackendLibSQL,
		DisplayName: "libSQL/Turso rehearsal cluster",
		Description: "edge database",
		Icon:        "☁",
	},
}
