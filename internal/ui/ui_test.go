package ui

import (
	"context"
	"sync"

	"formvoice/native/internal/domain"
)

// mockCommands records controller commands.
type mockCommands struct {
	mu        sync.Mutex
	calls     []string
	callIDs   []string
	fields    []map[string]string
	interacts int
	startErr  error
}

func (m *mockCommands) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockCommands) StartSession(ctx context.Context) error {
	m.record("start")
	return m.startErr
}

func (m *mockCommands) StopSession(ctx context.Context) error {
	m.record("stop")
	return nil
}

func (m *mockCommands) ConfirmVerification(callID string, fields map[string]string) error {
	m.mu.Lock()
	m.callIDs = append(m.callIDs, callID)
	m.fields = append(m.fields, fields)
	m.mu.Unlock()
	m.record("confirm")
	return nil
}

func (m *mockCommands) SkipVerification() error {
	m.record("skip")
	return nil
}

func (m *mockCommands) Interact() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interacts++
}

func (m *mockCommands) snapshot() ([]string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...), m.interacts
}

var _ domain.Commands = (*mockCommands)(nil)
