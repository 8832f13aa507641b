package wizard

import (
	"errors"
	"os"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestUpdateStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		initialState  WizardState
		msg           tea.Msg
		expectedState WizardState
	}{
		{
			name:          "enter at welcome advances to database type",
			initialState:  StateWelcome,
			msg:           tea.KeyMsg{Type: tea.KeyEnter},
			expectedState: StateDatabaseType,
		},
		{
			name:          "enter at check existing advances to database type",
			initialState:  StateCheckExisting,
			msg:           tea.KeyMsg{Type: tea.KeyEnter},
			expectedState: StateDatabaseType,
		},
		{
			name:          "file creation success ends in done",
			initialState:  StateCreating,
			msg:           fileCreationResultMsg{result: &InitResult{}},
			expectedState: StateDone,
		},
		{
			name:          "file creation failure ends in error",
			initialState:  StateCreating,
			msg:           fileCreationResultMsg{err: errors.New("disk full")},
			expectedState: StateError,
		},
		{
			name:          "enter at add another advances to summary",
			initialState:  StateAddAnother,
			msg:           tea.KeyMsg{Type: tea.KeyEnter},
			expectedState: StateSummary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.state = tt.initialState

			updated, _ := m.Update(tt.msg)
			got := updated.(WizardModel)
			if got.state != tt.expectedState {
				t.Errorf("state = %d, want %d", got.state, tt.expectedState)
			}
		})
	}
}

func TestConnectionTestResultHandling(t *testing.T) {
	m := New()
	m.state = StateTestConnection
	m.testingConnection = true

	updated, _ := m.Update(connectionTestResultMsg{err: errors.New("refused")})
	got := updated.(WizardModel)
	if got.testingConnection {
		t.Error("testingConnection should be cleared")
	}
	if got.connectionTestResult != "failed" {
		t.Errorf("connectionTestResult = %q, want failed", got.connectionTestResult)
	}

	updated, _ = got.Update(connectionTestResultMsg{})
	got = updated.(WizardModel)
	if got.connectionTestResult != "success" {
		t.Errorf("connectionTestResult = %q, want success", got.connectionTestResult)
	}
	if got.connectionError != nil {
		t.Errorf("connectionError = %v, want nil", got.connectionError)
	}
}

func TestDatabaseTypeNavigation(t *testing.T) {
	m := New()
	m.state = StateDatabaseType

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	got := updated.(WizardModel)
	if got.dbTypeIndex != 1 {
		t.Errorf("dbTypeIndex after down = %d, want 1", got.dbTypeIndex)
	}

	// Cannot move past the last option.
	got.dbTypeIndex = len(DatabaseTypes) - 1
	updated, _ = got.Update(tea.KeyMsg{Type: tea.KeyDown})
	got = updated.(WizardModel)
	if got.dbTypeIndex != len(DatabaseTypes)-1 {
		t.Errorf("dbTypeIndex clamped = %d, want %d", got.dbTypeIndex, len(DatabaseTypes)-1)
	}

	updated, _ = got.Update(tea.KeyMsg{Type: tea.KeyUp})
	got = updated.(WizardModel)
	if got.dbTypeIndex != len(DatabaseTypes)-2 {
		t.Errorf("dbTypeIndex after up = %d", got.dbTypeIndex)
	}
}

func TestSelectingDatabaseTypePreparesInputs(t *testing.T) {
	m := New()
	m.state = StateDatabaseType
	m.dbTypeIndex = 1 // sqlite

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := updated.(WizardModel)
	if got.state != StateConnectionDetails {
		t.Fatalf("state = %d, want StateConnectionDetails", got.state)
	}
	if got.currentEnv.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", got.currentEnv.DatabaseType)
	}
	if len(got.inputs) != 3 {
		t.Errorf("sqlite inputs = %d, want 3", len(got.inputs))
	}
}

func TestCheckForExistingConfig(t *testing.T) {
	inTempDir(t)

	// No config file present.
	msg := checkForExistingConfig().(existingConfigMsg)
	if msg.path != "" {
		t.Errorf("expected empty path, got %q", msg.path)
	}

	content := "default_environment = \"local\"\n\n[environments.local]\ndescription = \"x\"\n\n[environments.prod]\ndescription = \"y\"\n"
	if err := os.WriteFile("groundwork.toml", []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	msg = checkForExistingConfig().(existingConfigMsg)
	if msg.path != "groundwork.toml" {
		t.Errorf("path = %q, want groundwork.toml", msg.path)
	}
	if len(msg.envNames) != 2 {
		t.Errorf("envNames = %v, want 2 entries", msg.envNames)
	}
}

func TestQuitKeys(t *testing.T) {
	m := New()
	m.state = StateWelcome

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}
