// Package startup toggles launching the application at user login.
package startup

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	// ValueName is the entry name under the per-user Run key.
	ValueName = "OpenRewrite"
	runKey    = `Software\Microsoft\Windows\CurrentVersion\Run`
)

var ErrUnsupported = errors.New("run at startup is only supported on Windows")

// Manager reads and writes the run-at-login entry for one executable.
type Manager struct {
	name    string
	command string
}

// New returns a Manager for the running executable.
func New() (*Manager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return NewFor(ValueName, exe), nil
}

// NewFor registers exe under name. The command is quoted so paths with spaces work.
func NewFor(name, exe string) *Manager {
	return &Manager{name: name, command: `"` + exe + `"`}
}

func (m *Manager) Command() string { return m.command }

// Toggle flips the current state and returns the new one.
func (m *Manager) Toggle() (bool, error) {
	on, err := m.Enabled()
	if err != nil {
		return false, err
	}
	if on {
		return false, m.Disable()
	}
	return true, m.Enable()
}
