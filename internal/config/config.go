package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"snowadmin/internal/common"
	"snowadmin/internal/credentials"
	"snowadmin/pkg/errors"
	"snowadmin/pkg/models"
)

// EnvPrefix is prepended to every environment override, e.g.
// SNOWADMIN_VAULT_URL for vault.url.
const EnvPrefix = "SNOWADMIN"

// DefaultScripts is the setup script order used when none is configured.
var DefaultScripts = []string{
	"01-multi-tenant-structure.sql",
	"02-token-efficient-cortex.sql",
	"03-bulk-org-creation.sql",
	"04-monitoring-views.sql",
	"05-conversation-storage.sql",
}

// GetConfigPath returns the per-user configuration directory.
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".snowadmin")
}

// GetConfigFile returns the per-user configuration file.
func GetConfigFile() string {
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// SetDefaults registers every key with its default so that environment
// overrides apply to keys absent from the file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("vault.provider", "azure")
	v.SetDefault("vault.url", "")
	v.SetDefault("vault.credential", "cli")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "snowadmin")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.region", "")
	v.SetDefault("vault.prefix", "")
	v.SetDefault("vault.service", "snowadmin")

	v.SetDefault("secrets.account", credentials.DefaultAccountSecret)
	v.SetDefault("secrets.user", credentials.DefaultUserSecret)
	v.SetDefault("secrets.warehouse", credentials.DefaultWarehouseSecret)
	v.SetDefault("secrets.role", credentials.DefaultRoleSecret)
	v.SetDefault("secrets.private_key", credentials.DefaultPrivateKeySecret)
	v.SetDefault("secrets.git_token", "snowadmin-git-token")

	v.SetDefault("snowflake.database", "")
	v.SetDefault("snowflake.schema", "")
	v.SetDefault("snowflake.admin_role", "SYSADMIN")
	v.SetDefault("snowflake.shared_database", "VIDEXA_SHARED")
	v.SetDefault("snowflake.login_timeout", 120*time.Second)
	v.SetDefault("snowflake.request_timeout", 300*time.Second)
	v.SetDefault("snowflake.keep_alive", true)

	v.SetDefault("setup.dir", "snowflake-setup")
	v.SetDefault("setup.scripts", DefaultScripts)
	v.SetDefault("setup.mode", "statements")
	v.SetDefault("setup.repo", "")
	v.SetDefault("setup.ref", "")
	v.SetDefault("setup.subdir", "")

	v.SetDefault("loader.organization", "")
	v.SetDefault("loader.claims_file", "")
	v.SetDefault("loader.patients_file", "")
	v.SetDefault("loader.batch_size", 1000)
	v.SetDefault("loader.skip_embeddings", false)

	v.SetDefault("cortex.embed_model", "snowflake-arctic-embed-m")
	v.SetDefault("cortex.complete_model", "mistral-large2")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init prepares v: defaults, .env, SNOWADMIN_ environment overrides, and the
// config file. An explicit file must exist; the default locations
// (./snowadmin.yaml, then ~/.snowadmin/config.yaml) are optional.
func Init(v *viper.Viper, configFile string) error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid config file path: %v", err), "config")
		}
		v.SetConfigFile(cleaned)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigNotFound, "Failed to read config file").
				WithContext("path", cleaned)
		}
		return nil
	}

	for _, candidate := range []string{"snowadmin.yaml", GetConfigFile()} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		v.SetConfigFile(candidate)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse config file").
				WithContext("path", candidate)
		}
		return nil
	}
	return nil
}

// Decode returns the effective configuration held by v without validating
// it.
func Decode(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}
	return &cfg, nil
}

// Load decodes and validates the effective configuration held by v.
func Load(v *viper.Viper) (*models.Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating the directory with owner-only
// permissions. An existing file is left alone unless overwrite is set.
func Save(cfg *models.Config, path string, overwrite bool) error {
	if path == "" {
		path = GetConfigFile()
	}
	cleaned, err := common.CleanPath(path)
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid config file path: %v", err), "config")
	}

	if _, err := os.Stat(cleaned); err == nil && !overwrite {
		return errors.New(errors.ErrCodeValidationFailed, "Config file already exists").
			WithContext("path", cleaned).
			WithSuggestions("Pass --force to overwrite it")
	} else if err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to stat config file")
	}

	if err := os.MkdirAll(filepath.Dir(cleaned), common.DirPermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to create config directory")
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cleaned, data, common.FilePermissionSecure); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to write config file")
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *models.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to marshal config")
	}
	return data, nil
}

// SecretNames converts the secrets section into resolver input.
func SecretNames(cfg *models.Config) credentials.SecretNames {
	return credentials.SecretNames{
		Account:    cfg.Secrets.Account,
		User:       cfg.Secrets.User,
		Warehouse:  cfg.Secrets.Warehouse,
		Role:       cfg.Secrets.Role,
		PrivateKey: cfg.Secrets.PrivateKey,
	}
}
