package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"snowadmin/internal/config"
	"snowadmin/internal/credentials"
	"snowadmin/internal/observability"
	"snowadmin/internal/snowflake"
	"snowadmin/internal/ui"
	"snowadmin/internal/vault"
	"snowadmin/pkg/models"
)

// Replaced in tests.
var (
	openVault = vault.New
	connect   = func(ctx context.Context, cfg snowflake.Config, logger *slog.Logger) (*snowflake.Service, error) {
		svc := snowflake.NewService(cfg, logger)
		if err := svc.Connect(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	}
)

// session is the validated configuration and open vault of one command.
type session struct {
	cfg    *models.Config
	vault  vault.Client
	logger *slog.Logger
}

// newSession binds the command's flags, validates the configuration, and
// opens the configured vault.
func newSession(cmd *cobra.Command, bindings map[string]string) (*session, error) {
	if err := bindFlags(cmd.Flags(), bindings); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	logger := observability.FromContext(ctx)
	client, err := openVault(ctx, cfg.Vault)
	if err != nil {
		return nil, err
	}
	logger.DebugContext(ctx, "vault ready", slog.String("provider", cfg.Vault.Provider))
	return &session{cfg: cfg, vault: client, logger: logger}, nil
}

// resolve reads the connection bundle from the vault.
func (s *session) resolve(ctx context.Context) (*credentials.Bundle, error) {
	return credentials.NewResolver(s.vault, s.logger).Resolve(ctx, config.SecretNames(s.cfg))
}

// connect resolves credentials and opens a Snowflake session. Timeouts and
// keep-alive come from the configuration; opts supplies the rest.
func (s *session) connect(cmd *cobra.Command, opts snowflake.Options) (*snowflake.Service, error) {
	ctx := cmd.Context()
	bundle, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	opts.LoginTimeout = s.cfg.Snowflake.LoginTimeout
	opts.RequestTimeout = s.cfg.Snowflake.RequestTimeout
	opts.KeepAlive = s.cfg.Snowflake.KeepAlive
	if opts.Database == "" {
		opts.Database = s.cfg.Snowflake.Database
	}
	if opts.Schema == "" {
		opts.Schema = s.cfg.Snowflake.Schema
	}
	sfCfg, err := snowflake.NewConfig(bundle, opts)
	if err != nil {
		return nil, err
	}

	var spinner *ui.Spinner
	if ui.IsTerminal(cmd.ErrOrStderr()) {
		spinner = ui.NewSpinner(cmd.ErrOrStderr(), "Connecting to Snowflake as "+sfCfg.User)
		spinner.Start()
	}
	svc, err := connect(ctx, sfCfg, s.logger)
	if spinner != nil {
		if err != nil {
			spinner.Stop(false, "Connection failed")
		} else {
			spinner.Stop(true, "Connected as "+sfCfg.User+" ("+sfCfg.Role+")")
		}
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// adminOptions selects the administrative role used by setup and inspection.
func (s *session) adminOptions() snowflake.Options {
	return snowflake.Options{Role: s.cfg.Snowflake.AdminRole}
}

// bundleOptions keeps the role from the vault. Tenant commands switch roles
// themselves after login.
func (s *session) bundleOptions() snowflake.Options {
	return snowflake.Options{}
}
