package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowadmin/internal/security"
	"snowadmin/internal/ui"
	"snowadmin/pkg/errors"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Generate the bcrypt hash for the system administrator password",
	Long: `Generate a bcrypt hash for the system administrator row in
TENANT_MANAGEMENT. The password is read from --password, generated with
--generate, or prompted for without echo.`,
	RunE: runHashPassword,
}

func init() {
	f := hashPasswordCmd.Flags()
	f.String("password", "", "password to hash (prompted when omitted)")
	f.Bool("generate", false, "generate a random GUID password")
	f.Int("cost", security.DefaultCost, "bcrypt cost")
	f.String("verify", "", "check the password against this hash instead of hashing it")

	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	password, _ := f.GetString("password")
	generate, _ := f.GetBool("generate")
	cost, _ := f.GetInt("cost")
	verify, _ := f.GetString("verify")
	p := printer(cmd)

	switch {
	case generate && password != "":
		return errors.ValidationError("password", "<redacted>", "--password and --generate are mutually exclusive")
	case generate:
		password = security.GeneratePassword()
		p.KeyValue("Password", password)
	case password == "":
		var err error
		if password, err = ui.Password("Administrator password:", "Not echoed; at least 12 characters"); err != nil {
			return err
		}
	}

	if verify != "" {
		ok, err := security.VerifyPassword(verify, password)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New(errors.ErrCodeValidationFailed, "Password does not match hash")
		}
		p.Success("Password matches hash")
		return nil
	}

	hash, err := security.HashPassword(password, cost)
	if err != nil {
		return err
	}
	p.Section("bcrypt hash")
	// Printed even in quiet mode so scripts can capture it.
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	p.Info("Replace 'YOUR_BCRYPT_HASH_HERE' in the system administrator setup script with this hash")
	return nil
}
