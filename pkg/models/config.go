package models

import (
	"fmt"
	"strings"
	"time"

	"snowadmin/pkg/errors"
)

// Config is the effective snowadmin configuration after file, environment,
// and flag sources are merged.
type Config struct {
	Vault     VaultConfig     `mapstructure:"vault" yaml:"vault"`
	Secrets   SecretsConfig   `mapstructure:"secrets" yaml:"secrets"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake" yaml:"snowflake"`
	Setup     SetupConfig     `mapstructure:"setup" yaml:"setup"`
	Loader    LoaderConfig    `mapstructure:"loader" yaml:"loader"`
	Cortex    CortexConfig    `mapstructure:"cortex" yaml:"cortex"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// VaultConfig selects and configures the secret provider.
type VaultConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`     // azure, hashicorp, aws, keyring, env
	URL        string `mapstructure:"url" yaml:"url"`               // Key Vault URL or Vault address
	Credential string `mapstructure:"credential" yaml:"credential"` // azure only: cli or default
	Mount      string `mapstructure:"mount" yaml:"mount"`           // hashicorp KV v2 mount
	Path       string `mapstructure:"path" yaml:"path"`             // hashicorp secret path
	Namespace  string `mapstructure:"namespace" yaml:"namespace"`
	Region     string `mapstructure:"region" yaml:"region"` // aws only
	Prefix     string `mapstructure:"prefix" yaml:"prefix"` // prepended to every secret name
	Service    string `mapstructure:"service" yaml:"service"`
}

// SecretsConfig names the vault secrets that hold the connection bundle.
type SecretsConfig struct {
	Account    string `mapstructure:"account" yaml:"account"`
	User       string `mapstructure:"user" yaml:"user"`
	Warehouse  string `mapstructure:"warehouse" yaml:"warehouse"`
	Role       string `mapstructure:"role" yaml:"role"`
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"`
	GitToken   string `mapstructure:"git_token" yaml:"git_token"`
}

// SnowflakeConfig holds session settings that are not secrets.
type SnowflakeConfig struct {
	Database       string        `mapstructure:"database" yaml:"database"`
	Schema         string        `mapstructure:"schema" yaml:"schema"`
	AdminRole      string        `mapstructure:"admin_role" yaml:"admin_role"`
	SharedDatabase string        `mapstructure:"shared_database" yaml:"shared_database"`
	LoginTimeout   time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	KeepAlive      bool          `mapstructure:"keep_alive" yaml:"keep_alive"`
}

// SetupConfig controls the setup script runner.
type SetupConfig struct {
	Dir     string   `mapstructure:"dir" yaml:"dir"`
	Scripts []string `mapstructure:"scripts" yaml:"scripts"`
	Mode    string   `mapstructure:"mode" yaml:"mode"` // statements or multi
	Repo    string   `mapstructure:"repo" yaml:"repo"`
	Ref     string   `mapstructure:"ref" yaml:"ref"`
	Subdir  string   `mapstructure:"subdir" yaml:"subdir"`
}

// LoaderConfig controls bulk CSV loading.
type LoaderConfig struct {
	Organization   string `mapstructure:"organization" yaml:"organization"`
	ClaimsFile     string `mapstructure:"claims_file" yaml:"claims_file"`
	PatientsFile   string `mapstructure:"patients_file" yaml:"patients_file"`
	BatchSize      int    `mapstructure:"batch_size" yaml:"batch_size"`
	SkipEmbeddings bool   `mapstructure:"skip_embeddings" yaml:"skip_embeddings"`
}

// CortexConfig names the Cortex models the RAG checks call.
type CortexConfig struct {
	EmbedModel    string `mapstructure:"embed_model" yaml:"embed_model"`
	CompleteModel string `mapstructure:"complete_model" yaml:"complete_model"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// Known vault providers.
var VaultProviders = []string{"azure", "hashicorp", "aws", "keyring", "env"}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if !contains(VaultProviders, c.Vault.Provider) {
		return errors.ConfigError(
			fmt.Sprintf("unknown vault provider %q (want one of %s)", c.Vault.Provider, strings.Join(VaultProviders, ", ")),
			"vault.provider")
	}
	switch c.Vault.Provider {
	case "azure":
		if c.Vault.URL == "" {
			return errors.ConfigError("vault.url is required for the azure provider", "vault.url")
		}
		if c.Vault.Credential != "cli" && c.Vault.Credential != "default" {
			return errors.ConfigError(
				fmt.Sprintf("unknown azure credential %q (want cli or default)", c.Vault.Credential),
				"vault.credential")
		}
	case "hashicorp":
		if c.Vault.Path == "" {
			return errors.ConfigError("vault.path is required for the hashicorp provider", "vault.path")
		}
	}

	secrets := map[string]string{
		"secrets.account":     c.Secrets.Account,
		"secrets.user":        c.Secrets.User,
		"secrets.warehouse":   c.Secrets.Warehouse,
		"secrets.role":        c.Secrets.Role,
		"secrets.private_key": c.Secrets.PrivateKey,
	}
	for _, field := range []string{"secrets.account", "secrets.user", "secrets.warehouse", "secrets.role", "secrets.private_key"} {
		if secrets[field] == "" {
			return errors.ConfigError(field+" must name a vault secret", field)
		}
	}

	if c.Snowflake.LoginTimeout <= 0 {
		return errors.ConfigError("snowflake.login_timeout must be positive", "snowflake.login_timeout")
	}
	if c.Snowflake.RequestTimeout <= 0 {
		return errors.ConfigError("snowflake.request_timeout must be positive", "snowflake.request_timeout")
	}

	if c.Setup.Mode != "statements" && c.Setup.Mode != "multi" {
		return errors.ConfigError(
			fmt.Sprintf("unknown setup mode %q (want statements or multi)", c.Setup.Mode),
			"setup.mode")
	}
	if c.Loader.BatchSize <= 0 {
		return errors.ConfigError("loader.batch_size must be positive", "loader.batch_size")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.ConfigError(fmt.Sprintf("unknown log format %q (want text or json)", c.Log.Format), "log.format")
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
