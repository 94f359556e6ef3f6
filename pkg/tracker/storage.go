package tracker

import "sync"

// Storage key names. Everything the SDK persists lives under these
// namespaced keys so OptOut can purge them all.
const (
	KeyVisitor     = "oma_visitor"
	KeyFingerprint = "oma_fingerprint"
	KeySession     = "oma_session"
	KeyConsent     = "oma_consent"
	KeyOptOut      = "oma_opt_out"
)

// Storage is the SDK's key-value persistence boundary, the Go counterpart
// of the browser's local/session storage. Implementations must be safe for
// concurrent use.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// MemoryStorage is an in-process Storage. The zero value is not usable;
// use NewMemoryStorage.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *MemoryStorage) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}
