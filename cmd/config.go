package cmd

import (
	"github.com/spf13/cobra"

	"snowadmin/internal/config"
	"snowadmin/internal/inspect"
	"snowadmin/internal/ui"
	"snowadmin/pkg/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the snowadmin configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after file, environment, and flag overrides",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().String("path", "", "file to write (default ~/.snowadmin/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configInitCmd.Flags().Bool("interactive", false, "prompt for the vault settings")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to write configuration")
	}
	if err := cfg.Validate(); err != nil {
		printer(cmd).Warning("Configuration is not valid: " + err.Error())
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")
	interactive, _ := cmd.Flags().GetBool("interactive")

	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	if interactive {
		if cfg.Vault.Provider, err = ui.Input("Vault provider:", cfg.Vault.Provider, "azure, hashicorp, aws, keyring, or env"); err != nil {
			return err
		}
		if cfg.Vault.Provider == "azure" || cfg.Vault.Provider == "hashicorp" {
			if cfg.Vault.URL, err = ui.Input("Vault URL:", cfg.Vault.URL, "Key Vault URL or Vault address"); err != nil {
				return err
			}
		}
		if cfg.Snowflake.SharedDatabase, err = ui.Input("Shared database:", cfg.Snowflake.SharedDatabase, ""); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		printer(cmd).Warning("Writing a configuration that does not validate yet: " + err.Error())
	}

	if path == "" {
		path = config.GetConfigFile()
	}
	if err := config.Save(cfg, path, force); err != nil {
		return err
	}
	printer(cmd).Success("Configuration written to " + path)
	return nil
}

func invalidOutput(format string) error {
	return errors.ValidationError("output", format, "want "+inspect.FormatTable+" or "+inspect.FormatYAML)
}
