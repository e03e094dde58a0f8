//go:build !windows

package startup

func (m *Manager) Enabled() (bool, error) { return false, nil }

func (m *Manager) Enable() error { return ErrUnsupported }

func (m *Manager) Disable() error { return nil }
