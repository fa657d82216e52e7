package config

import (
	"strconv"
	"sync"
)

// Store is the preferences store the update driver reads and writes its
// persisted settings through.
type Store interface {
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetFloat64(key string) float64
	Set(key string, value any) error
	// Save persists the current values of keys.
	Save(keys ...string) error
}

type viperStore struct{}

// Preferences returns the process-wide store backed by the viper configuration.
func Preferences() Store {
	return viperStore{}
}

func (viperStore) GetString(key string) string     { return GetString(key) }
func (viperStore) GetBool(key string) bool         { return GetBool(key) }
func (viperStore) GetInt(key string) int           { return GetInt(key) }
func (viperStore) GetFloat64(key string) float64   { return GetFloat64(key) }
func (viperStore) Set(key string, value any) error { return Set(key, value) }
func (viperStore) Save(keys ...string) error       { return SaveKeys(keys...) }

// MemoryStore keeps preferences in memory. Save records the keys it was
// asked to persist.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]any
	saved  []string
}

// NewMemoryStore returns a store seeded with the default update settings
// merged with values.
func NewMemoryStore(values map[string]any) *MemoryStore {
	s := &MemoryStore{values: map[string]any{
		KeyCheckIntervalSeconds: DefaultCheckIntervalSeconds,
		KeyAutoCheck:            true,
		KeyAutoDownload:         false,
		KeyAllowAutomatic:       true,
	}}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *MemoryStore) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := s.values[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (s *MemoryStore) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := s.values[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (s *MemoryStore) GetInt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := s.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func (s *MemoryStore) GetFloat64(key string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := s.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func (s *MemoryStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Save(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, keys...)
	return nil
}

// Saved returns the keys passed to Save so far, in order.
func (s *MemoryStore) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.saved))
	copy(out, s.saved)
	return out
}
