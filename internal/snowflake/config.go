package snowflake

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"snowadmin/internal/credentials"
)

const (
	DefaultLoginTimeout   = 120 * time.Second
	DefaultRequestTimeout = 300 * time.Second
)

// Config holds Snowflake connection configuration
type Config struct {
	Account        string
	User           string
	Warehouse      string
	Role           string
	Database       string
	Schema         string
	PrivateKey     *rsa.PrivateKey
	LoginTimeout   time.Duration
	RequestTimeout time.Duration
	KeepAlive      bool
}

// Options adjusts a Config built from a credential bundle.
type Options struct {
	Role           string // replaces the bundle role when set
	Database       string
	Schema         string
	LoginTimeout   time.Duration
	RequestTimeout time.Duration
	KeepAlive      bool
}

// NewConfig builds a key-pair authenticated connection config from bundle.
func NewConfig(bundle *credentials.Bundle, opts Options) (Config, error) {
	key, err := credentials.RSAKey(bundle.PrivateKey())
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Account:        bundle.Account(),
		User:           bundle.User(),
		Warehouse:      bundle.Warehouse(),
		Role:           bundle.Role(),
		Database:       opts.Database,
		Schema:         opts.Schema,
		PrivateKey:     key,
		LoginTimeout:   opts.LoginTimeout,
		RequestTimeout: opts.RequestTimeout,
		KeepAlive:      opts.KeepAlive,
	}
	if opts.Role != "" {
		cfg.Role = opts.Role
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = DefaultLoginTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return cfg, ValidateConfig(cfg)
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.User == "" {
		return fmt.Errorf("user is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Role == "" {
		return fmt.Errorf("role is required")
	}
	if config.PrivateKey == nil {
		return fmt.Errorf("private key is required")
	}
	return nil
}

// DSN renders the driver connection string for config.
func DSN(config Config) (string, error) {
	keepAlive := "false"
	if config.KeepAlive {
		keepAlive = "true"
	}

	sfConfig := &gosnowflake.Config{
		Account:        config.Account,
		User:           config.User,
		Warehouse:      config.Warehouse,
		Role:           config.Role,
		Database:       config.Database,
		Schema:         config.Schema,
		Authenticator:  gosnowflake.AuthTypeJwt,
		PrivateKey:     config.PrivateKey,
		LoginTimeout:   config.LoginTimeout,
		RequestTimeout: config.RequestTimeout,
		Params: map[string]*string{
			"client_session_keep_alive": &keepAlive,
		},
	}

	dsn, err := gosnowflake.DSN(sfConfig)
	if err != nil {
		return "", fmt.Errorf("failed to build dsn: %w", err)
	}
	return dsn, nil
}
