package cache

// Memory is a process-local Backend.
type Memory struct {
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(key string) (Entry, error) {
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Put(e Entry) error {
	m.entries[e.Key] = e
	return nil
}

func (m *Memory) Delete(key string) error {
	delete(m.entries, key)
	return nil
}

func (m *Memory) Clear() error {
	m.entries = make(map[string]Entry)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	return len(m.entries)
}
