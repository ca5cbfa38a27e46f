// Package credentials resolves Snowflake connection credentials from a vault.
//
// Every command that talks to Snowflake goes through Resolver.Resolve: it
// fetches the account, user, warehouse, role, and private key secrets one at
// a time, repairs whitespace damage in the stored PEM key, and returns an
// immutable Bundle holding the key as unencrypted PKCS#8 DER.
package credentials

import (
	"fmt"

	"snowadmin/pkg/errors"
)

// Default secret names used by the production vault.
const (
	DefaultAccountSecret    = "snowflake-account"
	DefaultUserSecret       = "snowflake-user"
	DefaultWarehouseSecret  = "snowflake-warehouse"
	DefaultRoleSecret       = "snowflake-role"
	DefaultPrivateKeySecret = "snowflake-agentnexus-private-key"
)

// SecretNames maps each logical connection setting to its vault secret name.
type SecretNames struct {
	Account    string `mapstructure:"account" yaml:"account"`
	User       string `mapstructure:"user" yaml:"user"`
	Warehouse  string `mapstructure:"warehouse" yaml:"warehouse"`
	Role       string `mapstructure:"role" yaml:"role"`
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"`
}

// DefaultSecretNames returns the secret names of the production vault.
func DefaultSecretNames() SecretNames {
	return SecretNames{
		Account:    DefaultAccountSecret,
		User:       DefaultUserSecret,
		Warehouse:  DefaultWarehouseSecret,
		Role:       DefaultRoleSecret,
		PrivateKey: DefaultPrivateKeySecret,
	}
}

// Validate reports the first empty secret name.
func (n SecretNames) Validate() error {
	fields := []struct {
		field string
		value string
	}{
		{"secrets.account", n.Account},
		{"secrets.user", n.User},
		{"secrets.warehouse", n.Warehouse},
		{"secrets.role", n.Role},
		{"secrets.private_key", n.PrivateKey},
	}
	for _, f := range fields {
		if f.value == "" {
			return errors.ConfigError(fmt.Sprintf("secret name for %s is empty", f.field), f.field)
		}
	}
	return nil
}

// Bundle is the resolved set of connection parameters. It is built once per
// run and never modified; accessors hand out copies of the key bytes.
type Bundle struct {
	account    string
	user       string
	warehouse  string
	role       string
	privateKey []byte
}

// NewBundle assembles a bundle from already-resolved values.
func NewBundle(account, user, warehouse, role string, privateKey []byte) *Bundle {
	key := make([]byte, len(privateKey))
	copy(key, privateKey)
	return &Bundle{
		account:    account,
		user:       user,
		warehouse:  warehouse,
		role:       role,
		privateKey: key,
	}
}

func (b *Bundle) Account() string   { return b.account }
func (b *Bundle) User() string      { return b.user }
func (b *Bundle) Warehouse() string { return b.warehouse }
func (b *Bundle) Role() string      { return b.role }

// PrivateKey returns a copy of the key bytes. For PEM-sourced keys this is
// unencrypted PKCS#8 DER; for secrets without PEM markers it is the stored
// value unchanged.
func (b *Bundle) PrivateKey() []byte {
	key := make([]byte, len(b.privateKey))
	copy(key, b.privateKey)
	return key
}

// String describes the bundle without key material.
func (b *Bundle) String() string {
	return fmt.Sprintf("account=%s user=%s warehouse=%s role=%s key=<%d bytes>",
		b.account, b.user, b.warehouse, b.role, len(b.privateKey))
}
