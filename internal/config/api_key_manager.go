package config

import (
	"math/rand"
	"sync"
	"time"
)

// APIKeyManager hands out explorer API keys, rotating on rate-limit errors.
type APIKeyManager struct {
	apiKeys []string
	current int
	mutex   sync.RWMutex
	rng     *rand.Rand
}

// NewAPIKeyManager returns nil when the explorer has no key at all; every
// method is safe on a nil manager.
func NewAPIKeyManager(explorer Explorer) *APIKeyManager {
	seen := make(map[string]struct{})
	validKeys := make([]string, 0, len(explorer.APIKeys)+1)
	for _, key := range append([]string{explorer.APIKey}, explorer.APIKeys...) {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		validKeys = append(validKeys, key)
	}
	if len(validKeys) == 0 {
		return nil
	}

	return &APIKeyManager{
		apiKeys: validKeys,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *APIKeyManager) GetKey() string {
	if m == nil {
		return ""
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.apiKeys[m.current]
}

func (m *APIKeyManager) GetNextKey() string {
	if m == nil {
		return ""
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = (m.current + 1) % len(m.apiKeys)
	return m.apiKeys[m.current]
}

func (m *APIKeyManager) GetRandomKey() string {
	if m == nil {
		return ""
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.apiKeys[m.rng.Intn(len(m.apiKeys))]
}

func (m *APIKeyManager) GetKeyCount() int {
	if m == nil {
		return 0
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.apiKeys)
}

func (m *APIKeyManager) HasKeys() bool {
	return m != nil && len(m.apiKeys) > 0
}
