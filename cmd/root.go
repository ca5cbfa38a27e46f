package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"snowadmin/internal/config"
	"snowadmin/internal/observability"
	"snowadmin/internal/ui"
	"snowadmin/pkg/errors"
	"snowadmin/pkg/models"
)

var (
	cfgFile string

	// v holds the configuration of the running command. It is rebuilt on
	// every execution.
	v = viper.New()

	rootCmd = &cobra.Command{
		Use:   "snowadmin",
		Short: "Administer the Snowflake tenant platform",
		Long: `snowadmin resolves Snowflake key-pair credentials from a secret vault and
runs setup scripts, state checks, tenant data loads, and Cortex RAG checks
against the account.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initRuntime,
	}
)

// persistentBindings maps config keys to root flags.
var persistentBindings = map[string]string{
	"log.level":      "log-level",
	"log.format":     "log-format",
	"vault.provider": "vault-provider",
	"vault.url":      "vault-url",
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		ui.NewPrinter(os.Stderr, false).Error(err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./snowadmin.yaml or ~/.snowadmin/config.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("vault-provider", "", "secret provider: "+strings.Join(models.VaultProviders, ", "))
	pf.String("vault-url", "", "Azure Key Vault URL or HashiCorp Vault address")
	pf.BoolP("quiet", "q", false, "only print errors")
}

// initRuntime loads configuration sources and installs the logger. The
// configuration is validated later, by the commands that need it.
func initRuntime(cmd *cobra.Command, _ []string) error {
	v = viper.New()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	if err := bindFlags(cmd.Root().PersistentFlags(), persistentBindings); err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:   v.GetString("log.level"),
		Format:  v.GetString("log.format"),
		Output:  cmd.ErrOrStderr(),
		Service: "snowadmin",
		Version: Version,
	})
	if err != nil {
		return errors.ConfigError(err.Error(), "log")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(observability.WithLogger(ctx, logger))
	return nil
}

// bindFlags makes flags override the matching config keys when set.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "Failed to bind flag").WithContext("flag", name)
		}
	}
	return nil
}

func printer(cmd *cobra.Command) *ui.Printer {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return ui.NewPrinter(cmd.OutOrStdout(), quiet)
}
