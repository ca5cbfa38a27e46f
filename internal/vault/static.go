package vault

import (
	"context"
	"fmt"
	"sync"
)

// Static is an in-memory provider.
type Static struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewStatic creates a provider holding a copy of secrets.
func NewStatic(secrets map[string]string) *Static {
	s := &Static{secrets: make(map[string]string, len(secrets))}
	for k, v := range secrets {
		s.secrets[k] = v
	}
	return s
}

func (s *Static) GetSecret(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return value, nil
}

func (s *Static) PutSecret(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
	return nil
}
