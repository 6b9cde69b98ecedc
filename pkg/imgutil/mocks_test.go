package imgutil

import "time"

type mockCache struct {
	data map[string]any
	sets int
}

func (m *mockCache) Get(key string) (any, bool) {
	val, ok := m.data[key]
	return val, ok
}

func (m *mockCache) Set(key string, value any, d time.Duration) {
	m.sets++
	m.data[key] = value
}
