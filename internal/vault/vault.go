// Package vault provides the secret sources the credential resolver reads
// from. Providers are registered by name and selected by configuration.
package vault

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"snowadmin/pkg/models"
)

// ErrNotFound is returned when a provider has no value for a secret name.
var ErrNotFound = stderrors.New("secret not found")

// Client returns the plain-text value of a named secret.
type Client interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Writer is implemented by providers that can store secrets.
type Writer interface {
	PutSecret(ctx context.Context, name, value string) error
}

// Factory creates a Client from the vault section of the configuration.
type Factory func(ctx context.Context, cfg models.VaultConfig) (Client, error)

// Registry manages provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a provider factory.
func (r *Registry) Register(name string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return stderrors.New("invalid vault provider registration")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("vault provider %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates the provider named by cfg.Provider. A configured
// prefix is applied to every secret name the client is asked for.
func (r *Registry) Create(ctx context.Context, cfg models.VaultConfig) (Client, error) {
	name := strings.TrimSpace(cfg.Provider)
	if name == "" {
		return nil, stderrors.New("vault provider name is required")
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vault provider %q is not registered", name)
	}

	client, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s vault client: %w", name, err)
	}
	if cfg.Prefix != "" {
		client = &prefixed{Client: client, prefix: cfg.Prefix}
	}
	return client, nil
}

// List returns registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in providers.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register("azure", func(_ context.Context, cfg models.VaultConfig) (Client, error) {
		return NewAzure(cfg)
	})
	_ = DefaultRegistry.Register("hashicorp", func(_ context.Context, cfg models.VaultConfig) (Client, error) {
		return NewHashiCorp(cfg)
	})
	_ = DefaultRegistry.Register("aws", func(ctx context.Context, cfg models.VaultConfig) (Client, error) {
		return NewAWS(ctx, cfg)
	})
	_ = DefaultRegistry.Register("keyring", func(_ context.Context, cfg models.VaultConfig) (Client, error) {
		return NewKeyring(cfg.Service), nil
	})
	_ = DefaultRegistry.Register("env", func(context.Context, models.VaultConfig) (Client, error) {
		return NewEnv(""), nil
	})
}

// New creates the configured provider from DefaultRegistry.
func New(ctx context.Context, cfg models.VaultConfig) (Client, error) {
	return DefaultRegistry.Create(ctx, cfg)
}

type prefixed struct {
	Client
	prefix string
}

func (p *prefixed) GetSecret(ctx context.Context, name string) (string, error) {
	return p.Client.GetSecret(ctx, p.prefix+name)
}

func (p *prefixed) PutSecret(ctx context.Context, name, value string) error {
	w, ok := p.Client.(Writer)
	if !ok {
		return fmt.Errorf("vault provider does not support writing secrets")
	}
	return w.PutSecret(ctx, p.prefix+name, value)
}
