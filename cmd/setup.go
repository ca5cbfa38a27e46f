package cmd

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"snowadmin/internal/git"
	"snowadmin/internal/setup"
	"snowadmin/internal/vault"
	"snowadmin/pkg/errors"
)

var setupCmd = &cobra.Command{
	Use:   "setup [script...]",
	Short: "Run the shared database setup scripts",
	Long: `Run the ordered setup scripts that create the shared tenant-management
database, Cortex functions, bulk organization procedures, monitoring views,
and conversation storage. Scripts are idempotent and safe to re-run.

Scripts are read from --dir, or from --subdir of a git repository when
--repo is set. Arguments replace the configured script list.`,
	RunE: runSetup,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run the bootstrap statements one at a time to find a missing privilege",
	RunE:  runProbe,
}

var setupBindings = map[string]string{
	"setup.dir":    "dir",
	"setup.mode":   "mode",
	"setup.repo":   "repo",
	"setup.ref":    "ref",
	"setup.subdir": "subdir",
}

func init() {
	f := setupCmd.Flags()
	f.String("dir", "", "directory holding the setup scripts")
	f.String("mode", "", "execution mode: statements or multi")
	f.String("repo", "", "git repository to read the scripts from")
	f.String("ref", "", "branch or tag to check out")
	f.String("subdir", "", "scripts directory inside the repository")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(probeCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, setupBindings)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	p := printer(cmd)

	scripts := s.cfg.Setup.Scripts
	if len(args) > 0 {
		scripts = args
	}

	dir := s.cfg.Setup.Dir
	if s.cfg.Setup.Repo != "" {
		token, err := s.gitToken(cmd)
		if err != nil {
			return err
		}
		checkout, err := git.NewService(s.logger).Clone(ctx, git.CheckoutOptions{
			URL:    s.cfg.Setup.Repo,
			Ref:    s.cfg.Setup.Ref,
			Subdir: s.cfg.Setup.Subdir,
			Token:  token,
		})
		if err != nil {
			return err
		}
		defer checkout.Close()
		dir = checkout.Dir()
		p.Info(fmt.Sprintf("Using scripts from %s at %s", s.cfg.Setup.Repo, checkout.Head()[:7]))
	}

	svc, err := s.connect(cmd, s.adminOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	runner, err := setup.NewRunner(svc, setup.Mode(s.cfg.Setup.Mode), s.logger)
	if err != nil {
		return err
	}
	summary, err := runner.Run(ctx, dir, scripts)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(summary.Scripts))
	for _, r := range summary.Scripts {
		rows = append(rows, []string{
			r.Name,
			setupStatus(r),
			strconv.Itoa(r.Statements),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
		})
	}
	p.Section("Setup summary")
	p.Table([]string{"Script", "Status", "Statements", "Existing", "Failed"}, rows)
	p.Summary(summary.Executed, summary.Total, "scripts executed successfully")

	if !summary.Success() {
		return errors.New(errors.ErrCodeSQLExecution,
			fmt.Sprintf("%d/%d scripts executed successfully", summary.Executed, summary.Total))
	}
	return nil
}

func setupStatus(r setup.ScriptResult) string {
	switch {
	case !r.OK():
		return "FAIL"
	case r.Failed > 0:
		return "DONE WITH ERRORS"
	default:
		return "OK"
	}
}

// gitToken reads the optional repository token. A missing secret means the
// repository is public.
func (s *session) gitToken(cmd *cobra.Command) (string, error) {
	name := s.cfg.Secrets.GitToken
	if name == "" {
		return "", nil
	}
	token, err := s.vault.GetSecret(cmd.Context(), name)
	if err != nil {
		if stderrors.Is(err, vault.ErrNotFound) {
			s.logger.DebugContext(cmd.Context(), "no git token in vault, cloning anonymously", slog.String("secret", name))
			return "", nil
		}
		return "", errors.SecretNotFound(name, err)
	}
	return token, nil
}

func runProbe(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, nil)
	if err != nil {
		return err
	}
	svc, err := s.connect(cmd, s.adminOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	steps := setup.Probe(cmd.Context(), svc, s.cfg.Snowflake.AdminRole, s.cfg.Snowflake.SharedDatabase, s.logger)

	p := printer(cmd)
	p.Section("Bootstrap probe")
	passed := 0
	for _, step := range steps {
		detail := ""
		if step.Err != nil {
			detail = step.Err.Error()
		} else {
			passed++
		}
		p.Check(step.Name, step.Passed(), detail)
		for _, d := range step.Details {
			p.Printf("        %s\n", d)
		}
	}
	p.Summary(passed, len(steps), "steps succeeded")

	if passed != len(steps) {
		return errors.New(errors.ErrCodeSQLPermission, fmt.Sprintf("%d of %d probe steps failed", len(steps)-passed, len(steps)))
	}
	return nil
}
