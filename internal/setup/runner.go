// Package setup runs the ordered, idempotent setup scripts that create the
// shared tenant-management database and its supporting objects.
package setup

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"snowadmin/internal/common"
	"snowadmin/internal/snowflake"
	"snowadmin/pkg/errors"
)

// Mode selects how a script is sent to Snowflake.
type Mode string

const (
	// ModeStatements splits each script and runs it statement by statement,
	// continuing past failures.
	ModeStatements Mode = "statements"
	// ModeMulti sends each script in one multi-statement request and stops
	// the run at the first failing script.
	ModeMulti Mode = "multi"
)

// maxLoggedRows is the largest result logged row by row.
const maxLoggedRows = 10

// Executor is the part of the Snowflake service the runner needs.
type Executor interface {
	ExecuteScript(ctx context.Context, script string) ([]snowflake.StatementResult, error)
	ExecuteMulti(ctx context.Context, script string) error
}

// ScriptResult is the outcome of one script.
type ScriptResult struct {
	Name       string
	Statements int
	Skipped    int // "already exists" errors
	Failed     int
	Missing    bool // the script could not be read; nothing was sent
	Err        error
}

// OK reports whether the script counts as executed.
func (r ScriptResult) OK() bool { return r.Err == nil }

// Summary reports a whole run.
type Summary struct {
	Executed int
	Failed   int
	Total    int
	Scripts  []ScriptResult
}

// Success reports whether every script ran.
func (s *Summary) Success() bool {
	return s.Total > 0 && s.Executed == s.Total
}

// Runner executes setup scripts.
type Runner struct {
	exec   Executor
	mode   Mode
	logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(exec Executor, mode Mode, logger *slog.Logger) (*Runner, error) {
	switch mode {
	case ModeStatements, ModeMulti:
	case "":
		mode = ModeStatements
	default:
		return nil, errors.ValidationError("mode", string(mode), "want statements or multi")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{exec: exec, mode: mode, logger: logger}, nil
}

// Run executes scripts from dir in order. A missing script is a counted
// failure and the run moves on. In statements mode the run always continues
// to the next script; in multi mode it stops after the first script that
// Snowflake rejects.
func (r *Runner) Run(ctx context.Context, dir string, scripts []string) (*Summary, error) {
	summary := &Summary{Total: len(scripts)}

	for _, name := range scripts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := r.runScript(ctx, dir, name)
		summary.Scripts = append(summary.Scripts, result)
		if result.OK() {
			summary.Executed++
			continue
		}

		summary.Failed++
		if r.mode == ModeMulti && !result.Missing {
			r.logger.ErrorContext(ctx, "stopping setup after failed script", slog.String("script", name))
			break
		}
	}

	level := slog.LevelInfo
	if !summary.Success() {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "setup complete",
		slog.Int("executed", summary.Executed),
		slog.Int("failed", summary.Failed),
		slog.Int("total", summary.Total))

	return summary, nil
}

func (r *Runner) runScript(ctx context.Context, dir, name string) ScriptResult {
	result := ScriptResult{Name: name}

	script, err := readScript(dir, name)
	if err != nil {
		r.logger.ErrorContext(ctx, "script not found", slog.String("script", name), slog.Any("error", err))
		result.Err = err
		result.Missing = true
		return result
	}

	r.logger.InfoContext(ctx, "executing script", slog.String("script", name), slog.String("mode", string(r.mode)))

	if r.mode == ModeMulti {
		if err := r.exec.ExecuteMulti(ctx, script); err != nil {
			r.logger.ErrorContext(ctx, "script failed", slog.String("script", name), slog.Any("error", err))
			result.Err = err
			return result
		}
		r.logger.InfoContext(ctx, "script completed", slog.String("script", name))
		return result
	}

	statements, err := r.exec.ExecuteScript(ctx, script)
	result.Statements = len(statements)
	if err != nil {
		result.Err = err
		return result
	}

	r.logger.InfoContext(ctx, "found statements", slog.String("script", name), slog.Int("count", len(statements)))

	for _, st := range statements {
		if st.Err != nil {
			if isAlreadyExists(st.Err) {
				result.Skipped++
				r.logger.WarnContext(ctx, "object already exists, skipping",
					slog.Int("statement", st.Index),
					slog.String("error", firstLine(rootCause(st.Err), 100)))
				continue
			}
			result.Failed++
			r.logger.ErrorContext(ctx, "statement failed",
				slog.Int("statement", st.Index),
				slog.String("sql", abbreviate(st.Statement, 200)),
				slog.String("code", string(errors.GetErrorCode(st.Err))),
				slog.Any("error", st.Err))
			continue
		}
		r.logResult(ctx, st)
	}

	r.logger.InfoContext(ctx, "script completed",
		slog.String("script", name),
		slog.Int("statements", result.Statements),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return result
}

func (r *Runner) logResult(ctx context.Context, st snowflake.StatementResult) {
	if st.Result == nil || len(st.Result.Rows) == 0 {
		return
	}
	if len(st.Result.Rows) > maxLoggedRows {
		r.logger.InfoContext(ctx, "rows returned", slog.Int("statement", st.Index), slog.Int("rows", len(st.Result.Rows)))
		return
	}
	for _, row := range st.Result.Rows {
		r.logger.InfoContext(ctx, "  "+strings.Join(row, " | "), slog.Int("statement", st.Index))
	}
}

func readScript(dir, name string) (string, error) {
	path, err := common.JoinPath(dir, name)
	if err != nil {
		return "", errors.ValidationError("script", name, err.Error())
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is confined to dir
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeFileNotFound, fmt.Sprintf("Script not found: %s", name)).
			WithContext("path", path)
	}
	return string(data), nil
}

// rootCause returns the innermost wrapped error, which carries the server
// message.
func rootCause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// isAlreadyExists reports whether err is the recoverable "object already
// exists" failure that a re-run of a setup script produces.
func isAlreadyExists(err error) bool {
	return errors.GetErrorCode(err) == errors.ErrCodeSQLObjectExists && errors.IsRecoverable(err)
}

// firstLine returns the first line of err's message, capped at n bytes.
func firstLine(err error, n int) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return abbreviate(msg, n)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
