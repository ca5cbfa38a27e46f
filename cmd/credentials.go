package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"snowadmin/internal/common"
	"snowadmin/internal/credentials"
	"snowadmin/internal/ui"
	"snowadmin/internal/vault"
	"snowadmin/pkg/errors"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Resolve the Snowflake connection bundle and show the key fingerprint",
	Long: `Resolve the account, user, warehouse, role, and private key from the
configured vault. The key itself is never printed; its public key
fingerprint matches RSA_PUBLIC_KEY_FP in DESCRIBE USER.`,
	RunE: runCredentials,
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage secrets in writable vault providers",
}

var secretsPutCmd = &cobra.Command{
	Use:   "put <name>",
	Short: "Store a secret in the configured vault (keyring provider)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretsPut,
}

func init() {
	credentialsCmd.Flags().Bool("connect", false, "also log in and report the session user and role")

	secretsPutCmd.Flags().String("value", "", "secret value (prompted when omitted)")
	secretsPutCmd.Flags().String("from-file", "", "read the secret value from a file, e.g. a PEM key")

	secretsCmd.AddCommand(secretsPutCmd)
	rootCmd.AddCommand(credentialsCmd)
	rootCmd.AddCommand(secretsCmd)
}

func runCredentials(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	bundle, err := s.resolve(cmd.Context())
	if err != nil {
		return err
	}
	fp, err := credentials.Fingerprint(bundle.PrivateKey())
	if err != nil {
		return err
	}

	p := printer(cmd)
	p.Section("Snowflake credentials (" + s.cfg.Vault.Provider + ")")
	p.KeyValue("Account", bundle.Account())
	p.KeyValue("User", bundle.User())
	p.KeyValue("Warehouse", bundle.Warehouse())
	p.KeyValue("Role", bundle.Role())
	p.KeyValue("Key fingerprint", fp)

	if ok, _ := cmd.Flags().GetBool("connect"); !ok {
		return nil
	}
	svc, err := s.connect(cmd, s.bundleOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	rs, err := svc.Query(cmd.Context(), "SELECT CURRENT_USER(), CURRENT_ROLE()")
	if err != nil {
		return err
	}
	if len(rs.Rows) == 0 || len(rs.Rows[0]) < 2 {
		return errors.New(errors.ErrCodeNoResults, "Session query returned no rows")
	}
	p.Success(fmt.Sprintf("Logged in as %s with role %s", rs.Rows[0][0], rs.Rows[0][1]))
	return nil
}

func runSecretsPut(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	w, ok := s.vault.(vault.Writer)
	if !ok {
		return errors.ConfigError(
			fmt.Sprintf("vault provider %q is read-only; use the provider's own tooling to store secrets", s.cfg.Vault.Provider),
			"vault.provider")
	}

	name := args[0]
	value, err := secretValue(cmd, name)
	if err != nil {
		return err
	}
	if err := w.PutSecret(cmd.Context(), name, value); err != nil {
		return errors.Wrap(err, errors.ErrCodeVaultUnavailable, "Failed to store secret").WithContext("secret", name)
	}
	printer(cmd).Success(fmt.Sprintf("Stored %s in %s", name, s.cfg.Vault.Provider))
	return nil
}

func secretValue(cmd *cobra.Command, name string) (string, error) {
	value, _ := cmd.Flags().GetString("value")
	file, _ := cmd.Flags().GetString("from-file")

	switch {
	case value != "" && file != "":
		return "", errors.ValidationError("value", "<redacted>", "--value and --from-file are mutually exclusive")
	case file != "":
		path, err := common.RegularFile(file)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeFileNotFound, "Secret file not found").WithContext("path", file)
		}
		f, err := os.Open(path) // #nosec G304 - operator-supplied file
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeFileNotFound, "Failed to open secret file")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeFileCorrupted, "Failed to read secret file")
		}
		value = strings.TrimSpace(string(data))
	case value == "":
		var err error
		if value, err = ui.Password(fmt.Sprintf("Value for %s:", name), "Not echoed"); err != nil {
			return "", err
		}
	}

	if value == "" {
		return "", errors.ValidationError("value", "", "secret value is empty")
	}
	return value, nil
}
