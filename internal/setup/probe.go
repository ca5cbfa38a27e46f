package setup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"snowadmin/internal/snowflake"
)

// Querier runs one statement and returns its rows.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*snowflake.ResultSet, error)
}

// Step is one probe check.
type Step struct {
	Name      string
	Statement string
	Err       error
	Details   []string
}

// Passed reports whether the step succeeded.
func (s Step) Passed() bool { return s.Err == nil }

// Probe runs the bootstrap statements one at a time and records each
// outcome without stopping, to find which privilege a failing setup run is
// missing.
func Probe(ctx context.Context, q Querier, role, database string, logger *slog.Logger) []Step {
	if logger == nil {
		logger = slog.Default()
	}
	schema := database + ".TENANT_MANAGEMENT"

	steps := []Step{
		{Name: "USE ROLE", Statement: fmt.Sprintf("USE ROLE %s", role)},
		{Name: "CREATE DATABASE", Statement: fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s COMMENT = 'Shared tenant management database'", database)},
		{Name: "USE DATABASE", Statement: fmt.Sprintf("USE DATABASE %s", database)},
		{Name: "CREATE SCHEMA", Statement: fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s COMMENT = 'Tenant management schema'", schema)},
		{Name: "USE SCHEMA", Statement: fmt.Sprintf("USE SCHEMA %s", schema)},
		{Name: "SHOW DATABASES", Statement: fmt.Sprintf("SHOW DATABASES LIKE '%s'", database)},
	}

	// Names are interpolated, so refuse anything that is not a plain
	// identifier before sending a statement.
	nameErr := snowflake.ValidateIdentifier(role)
	if nameErr == nil {
		nameErr = snowflake.ValidateIdentifier(database)
	}

	for i := range steps {
		step := &steps[i]
		if nameErr != nil {
			step.Err = nameErr
		} else {
			step.Details, step.Err = runStep(ctx, q, step.Statement)
		}

		if step.Err != nil {
			logger.ErrorContext(ctx, "probe step failed", slog.String("step", step.Name), slog.Any("error", step.Err))
		} else {
			logger.InfoContext(ctx, "probe step succeeded", slog.String("step", step.Name))
		}
	}
	return steps
}

// runStep executes one statement. For SHOW results it reports the row
// count and the object names in column 1.
func runStep(ctx context.Context, q Querier, statement string) ([]string, error) {
	rs, err := q.Query(ctx, statement)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(statement, "SHOW") {
		return nil, nil
	}
	details := []string{fmt.Sprintf("found %d object(s)", len(rs.Rows))}
	for _, row := range rs.Rows {
		if len(row) > 1 {
			details = append(details, row[1])
		}
	}
	return details, nil
}
