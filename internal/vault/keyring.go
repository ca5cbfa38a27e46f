package vault

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the OS keyring service snowadmin stores under.
const DefaultKeyringService = "snowadmin"

// Keyring reads and writes secrets in the operating system keyring.
type Keyring struct {
	service string
}

// NewKeyring creates a keyring provider for service.
func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultKeyringService
	}
	return &Keyring{service: service}
}

func (k *Keyring) GetSecret(_ context.Context, name string) (string, error) {
	value, err := keyring.Get(k.service, name)
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s in keyring service %s: %v", ErrNotFound, name, k.service, err)
		}
		return "", err
	}
	return value, nil
}

// PutSecret stores value under name, replacing any existing value.
func (k *Keyring) PutSecret(_ context.Context, name, value string) error {
	if err := keyring.Set(k.service, name, value); err != nil {
		return fmt.Errorf("store %s in keyring: %w", name, err)
	}
	return nil
}
