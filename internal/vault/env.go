package vault

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix prefixes secret variables, e.g. snowflake-account is read
// from SNOWADMIN_SECRET_SNOWFLAKE_ACCOUNT.
const DefaultEnvPrefix = "SNOWADMIN_SECRET_"

// Env reads secrets from environment variables.
type Env struct {
	prefix string
}

// NewEnv creates an environment provider. An empty prefix selects
// DefaultEnvPrefix.
func NewEnv(prefix string) *Env {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &Env{prefix: prefix}
}

// VarName returns the variable a secret name is read from.
func (e *Env) VarName(name string) string {
	return e.prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name))
}

func (e *Env) GetSecret(_ context.Context, name string) (string, error) {
	key := e.VarName(name)
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("%w: %s is not set", ErrNotFound, key)
	}
	return value, nil
}
