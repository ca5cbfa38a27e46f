package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"snowadmin/pkg/models"
)

type kvGetter interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
}

// HashiCorp reads secrets from one KV v2 entry; each secret name is a field
// of that entry.
type HashiCorp struct {
	kv   kvGetter
	path string
}

// NewHashiCorp creates a Vault client. The address defaults to VAULT_ADDR and
// the token is read from VAULT_TOKEN by the api package.
func NewHashiCorp(cfg models.VaultConfig) (*HashiCorp, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("vault secret path is required")
	}

	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, config.Error
	}
	if cfg.URL != "" {
		config.Address = cfg.URL
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	return &HashiCorp{kv: client.KVv2(mount), path: cfg.Path}, nil
}

func (h *HashiCorp) GetSecret(ctx context.Context, name string) (string, error) {
	secret, err := h.kv.Get(ctx, h.path)
	if err != nil {
		return "", err
	}

	value, ok := secret.Data[name]
	if !ok {
		return "", fmt.Errorf("%w: no field %s at %s", ErrNotFound, name, h.path)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %s at %s is %T, not a string", name, h.path, value)
	}
	return s, nil
}
