// Package inspect reports the state of a Snowflake account: what the
// session can see before setup, and which objects exist after it.
package inspect

import (
	"context"
	"fmt"
	"log/slog"

	"snowadmin/internal/snowflake"
)

// Session is the part of the Snowflake service the reports need.
type Session interface {
	QueryString(ctx context.Context, query string, args ...any) (string, error)
	QueryColumn(ctx context.Context, idx int, query string, args ...any) ([]string, error)
	Use(ctx context.Context, kind, name string) error
}

// nameColumn is where SHOW commands put the object name.
const nameColumn = 1

// orgSampleSize is how many organization databases a structure report lists.
const orgSampleSize = 5

// OrgDatabasePattern matches the per-tenant databases.
const OrgDatabasePattern = "HCS%"

// StateReport describes what the session can see.
type StateReport struct {
	CurrentRole    string   `yaml:"current_role"`
	Databases      []string `yaml:"databases"`
	SharedDatabase string   `yaml:"shared_database"`
	SharedUsable   bool     `yaml:"shared_usable"`
	SharedError    string   `yaml:"shared_error,omitempty"`
	SharedSchemas  []string `yaml:"shared_schemas,omitempty"`
	Roles          []string `yaml:"roles"`
}

// StructureReport lists the objects setup is expected to create.
type StructureReport struct {
	SharedDatabase string   `yaml:"shared_database"`
	Schemas        []string `yaml:"schemas"`
	Tables         []string `yaml:"tables"`
	Procedures     []string `yaml:"procedures"`
	OrgDatabases   int      `yaml:"org_databases"`
	OrgSample      []string `yaml:"org_sample"`
}

// CheckState reports the current role, visible databases, roles, and
// whether the shared database can be used. A shared database that cannot
// be used is recorded in the report, not returned as an error.
func CheckState(ctx context.Context, s Session, sharedDB string, logger *slog.Logger) (*StateReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := &StateReport{SharedDatabase: sharedDB}

	role, err := s.QueryString(ctx, "SELECT CURRENT_ROLE()")
	if err != nil {
		return nil, err
	}
	report.CurrentRole = role
	logger.InfoContext(ctx, "current role", slog.String("role", role))

	if report.Databases, err = s.QueryColumn(ctx, nameColumn, "SHOW DATABASES"); err != nil {
		return nil, err
	}

	if err := s.Use(ctx, "DATABASE", sharedDB); err != nil {
		report.SharedError = err.Error()
		logger.WarnContext(ctx, "cannot use shared database", slog.String("database", sharedDB), slog.Any("error", err))
	} else {
		report.SharedUsable = true
		if report.SharedSchemas, err = s.QueryColumn(ctx, nameColumn, "SHOW SCHEMAS"); err != nil {
			return nil, err
		}
	}

	if report.Roles, err = s.QueryColumn(ctx, nameColumn, "SHOW ROLES"); err != nil {
		return nil, err
	}
	return report, nil
}

// VerifyStructure lists the shared database's schemas, the tenant
// management tables and procedures, and the organization databases.
func VerifyStructure(ctx context.Context, s Session, sharedDB string, logger *slog.Logger) (*StructureReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := snowflake.ValidateIdentifier(sharedDB); err != nil {
		return nil, err
	}
	report := &StructureReport{SharedDatabase: sharedDB}
	tenantSchema := sharedDB + ".TENANT_MANAGEMENT"

	if err := s.Use(ctx, "DATABASE", sharedDB); err != nil {
		return nil, err
	}

	var err error
	if report.Schemas, err = s.QueryColumn(ctx, nameColumn, "SHOW SCHEMAS"); err != nil {
		return nil, err
	}

	if err := s.Use(ctx, "SCHEMA", tenantSchema); err != nil {
		return nil, err
	}
	if report.Tables, err = s.QueryColumn(ctx, nameColumn, "SHOW TABLES"); err != nil {
		return nil, err
	}
	if report.Procedures, err = s.QueryColumn(ctx, nameColumn, "SHOW PROCEDURES IN SCHEMA "+tenantSchema); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "tenant management objects",
		slog.Int("tables", len(report.Tables)),
		slog.Int("procedures", len(report.Procedures)))

	orgs, err := s.QueryColumn(ctx, nameColumn, fmt.Sprintf("SHOW DATABASES LIKE '%s'", OrgDatabasePattern))
	if err != nil {
		return nil, err
	}
	report.OrgDatabases = len(orgs)
	if len(orgs) > orgSampleSize {
		orgs = orgs[:orgSampleSize]
	}
	report.OrgSample = orgs
	logger.InfoContext(ctx, "organization databases", slog.Int("count", report.OrgDatabases))

	return report, nil
}
