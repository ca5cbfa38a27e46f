package cmd

import (
	"github.com/spf13/cobra"

	"snowadmin/internal/inspect"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show the current role, databases, roles, and shared database access",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInspect(cmd, func(s *session, svc inspect.Session) (any, error) {
			return inspect.CheckState(cmd.Context(), svc, s.cfg.Snowflake.SharedDatabase, s.logger)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "List the schemas, tables, procedures, and organization databases created by setup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInspect(cmd, func(s *session, svc inspect.Session) (any, error) {
			return inspect.VerifyStructure(cmd.Context(), svc, s.cfg.Snowflake.SharedDatabase, s.logger)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{checkCmd, verifyCmd} {
		c.Flags().StringP("output", "o", inspect.FormatTable, "output format: table or yaml")
		rootCmd.AddCommand(c)
	}
}

func runInspect(cmd *cobra.Command, report func(*session, inspect.Session) (any, error)) error {
	format, _ := cmd.Flags().GetString("output")
	if format != inspect.FormatTable && format != inspect.FormatYAML {
		return invalidOutput(format)
	}

	s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	svc, err := s.connect(cmd, s.adminOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	r, err := report(s, svc)
	if err != nil {
		return err
	}
	return inspect.Render(cmd.OutOrStdout(), r, format)
}
