package keyring

import "sync"

// Memory is an in-process keyring for tests and environments without a
// system keychain.
type Memory struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemory creates an empty in-memory keyring.
func NewMemory() *Memory {
	return &Memory{secrets: map[string]string{}}
}

func (m *Memory) Get(service, field string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[service+"\x00"+field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(service, field, value string) error {
	m.mu.Lock()
	m.secrets[service+"\x00"+field] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(service, field string) error {
	m.mu.Lock()
	delete(m.secrets, service+"\x00"+field)
	m.mu.Unlock()
	return nil
}
