// Package loader bulk-loads an organization's claims and patient CSV files
// into its tenant database and generates Cortex embeddings for the claims.
package loader

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"snowadmin/internal/common"
	"snowadmin/internal/cortex"
	"snowadmin/internal/snowflake"
	"snowadmin/pkg/errors"
)

// DefaultBatchSize is the number of rows per INSERT.
const DefaultBatchSize = 1000

// Options tune a Loader.
type Options struct {
	BatchSize  int
	EmbedModel string
}

// Counts summarizes the tenant's loaded data.
type Counts struct {
	Claims            int64 `yaml:"claims"`
	Patients          int64 `yaml:"patients"`
	Embeddings        int64 `yaml:"embeddings"`
	MissingEmbeddings int64 `yaml:"missing_embeddings"`
}

// Loader writes into one tenant's database.
type Loader struct {
	svc        *snowflake.Service
	tenant     *Tenant
	batchSize  int
	embedModel string
	logger     *slog.Logger
}

// New looks up orgID in the tenant registry and switches the session to the
// tenant's role, warehouse, and database.
func New(ctx context.Context, svc *snowflake.Service, sharedDB, orgID string, opts Options, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = cortex.DefaultEmbedModel
	}
	if err := cortex.ValidateModel(opts.EmbedModel); err != nil {
		return nil, err
	}

	tenant, err := LookupTenant(ctx, svc, sharedDB, orgID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Activate(ctx, svc); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "using tenant database",
		slog.String("org_id", orgID),
		slog.String("database", tenant.Database),
		slog.String("warehouse", tenant.Warehouse),
		slog.String("role", tenant.Role))

	return &Loader{
		svc:        svc,
		tenant:     tenant,
		batchSize:  opts.BatchSize,
		embedModel: opts.EmbedModel,
		logger:     logger.With(slog.String("org_id", orgID)),
	}, nil
}

// Tenant returns the resolved tenant.
func (l *Loader) Tenant() *Tenant {
	return l.tenant
}

// LoadClaims loads a claims CSV into CLAIMS.INSURANCE_CLAIMS.
func (l *Loader) LoadClaims(ctx context.Context, path string) (int, error) {
	return l.loadFile(ctx, path, claimsTable)
}

// LoadPatients loads a patients CSV into PATIENTS.PATIENT_RECORDS.
func (l *Loader) LoadPatients(ctx context.Context, path string) (int, error) {
	return l.loadFile(ctx, path, patientsTable)
}

// loadFile inserts every row of path in batches inside one transaction.
// Any failure rolls back the whole file.
func (l *Loader) loadFile(ctx context.Context, path string, spec tableSpec) (int, error) {
	cleaned, err := common.RegularFile(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeFileNotFound, fmt.Sprintf("%s file not found", spec.label)).
			WithContext("path", path)
	}
	f, err := os.Open(cleaned) // #nosec G304 - operator-supplied input file
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeFileNotFound, fmt.Sprintf("Failed to open %s file", spec.label)).
			WithContext("path", cleaned)
	}
	defer f.Close()

	rows, err := newRowReader(f, spec, cleaned)
	if err != nil {
		return 0, err
	}

	l.logger.InfoContext(ctx, "loading file", slog.String("kind", spec.label), slog.String("path", cleaned))

	tx, err := l.svc.BeginTx(ctx)
	if err != nil {
		return 0, err
	}

	loaded := 0
	th := l.svc.ErrorHandler().NewTransactionHandler(tx.Rollback)
	err = th.Execute(ctx, func() error {
		batch := make([][]any, 0, l.batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			query := spec.insertSQL(l.tenant.Database, len(batch))
			args := make([]any, 0, len(batch)*len(spec.columns))
			for _, values := range batch {
				args = append(args, values...)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return errors.SQLError(fmt.Sprintf("Failed to insert %s batch", spec.label), query, err).
					WithContext("loaded", loaded)
			}
			loaded += len(batch)
			batch = batch[:0]
			l.logger.InfoContext(ctx, "batch loaded", slog.String("kind", spec.label), slog.Int("loaded", loaded))
			return nil
		}

		for {
			values, err := rows.next()
			if stderrors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			batch = append(batch, values)
			if len(batch) >= l.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit load")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.logger.InfoContext(ctx, "file loaded",
		slog.String("kind", spec.label),
		slog.Int("rows", loaded),
		slog.String("table", spec.qualified(l.tenant.Database)))
	return loaded, nil
}

func (l *Loader) missingEmbeddingsSQL() string {
	db := l.tenant.Database
	return fmt.Sprintf(`SELECT COUNT(*) FROM %[1]s.CLAIMS.INSURANCE_CLAIMS c
WHERE NOT EXISTS (SELECT 1 FROM %[1]s.CORTEX_DATA.CLAIM_EMBEDDINGS e WHERE e.CLAIM_ID = c.CLAIM_ID)`, db)
}

// GenerateEmbeddings embeds every claim that has no row in
// CORTEX_DATA.CLAIM_EMBEDDINGS and returns the number inserted.
func (l *Loader) GenerateEmbeddings(ctx context.Context) (int64, error) {
	missing, err := l.svc.QueryInt(ctx, l.missingEmbeddingsSQL())
	if err != nil {
		return 0, err
	}
	l.logger.InfoContext(ctx, "claims needing embeddings", slog.Int64("count", missing))
	if missing == 0 {
		return 0, nil
	}

	db := l.tenant.Database
	query := fmt.Sprintf(`INSERT INTO %[1]s.CORTEX_DATA.CLAIM_EMBEDDINGS (CLAIM_ID, CLAIM_TEXT, EMBEDDING)
SELECT c.CLAIM_ID,
  CONCAT('Patient ', c.PATIENT_ID, ' ',
    'claim for ', COALESCE(c.PROCEDURE_CODE, 'unknown procedure'), ' ',
    'diagnosis ', COALESCE(c.DIAGNOSIS_CODE, 'unknown'), ' ',
    'by ', COALESCE(c.PROVIDER_NAME, 'unknown provider'), ' ',
    'status ', c.CLAIM_STATUS, ' ',
    'billed $', c.CLAIM_AMOUNT, ' ',
    'approved $', COALESCE(c.APPROVED_AMOUNT, 0)) AS claim_text,
  SNOWFLAKE.CORTEX.EMBED_TEXT_768('%[2]s', claim_text)
FROM %[1]s.CLAIMS.INSURANCE_CLAIMS c
WHERE NOT EXISTS (SELECT 1 FROM %[1]s.CORTEX_DATA.CLAIM_EMBEDDINGS e WHERE e.CLAIM_ID = c.CLAIM_ID)`,
		db, l.embedModel)

	res, err := l.svc.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to read inserted row count")
	}
	l.logger.InfoContext(ctx, "embeddings generated", slog.Int64("count", inserted))
	return inserted, nil
}

// Validate counts claims, patients, embeddings, and claims still missing an
// embedding.
func (l *Loader) Validate(ctx context.Context) (*Counts, error) {
	db := l.tenant.Database
	counts := &Counts{}

	queries := []struct {
		dest  *int64
		query string
	}{
		{&counts.Claims, fmt.Sprintf("SELECT COUNT(*) FROM %s.CLAIMS.INSURANCE_CLAIMS", db)},
		{&counts.Patients, fmt.Sprintf("SELECT COUNT(*) FROM %s.PATIENTS.PATIENT_RECORDS", db)},
		{&counts.Embeddings, fmt.Sprintf("SELECT COUNT(*) FROM %s.CORTEX_DATA.CLAIM_EMBEDDINGS", db)},
		{&counts.MissingEmbeddings, l.missingEmbeddingsSQL()},
	}
	for _, q := range queries {
		n, err := l.svc.QueryInt(ctx, q.query)
		if err != nil {
			return nil, err
		}
		*q.dest = n
	}

	l.logger.InfoContext(ctx, "validation results",
		slog.Int64("claims", counts.Claims),
		slog.Int64("patients", counts.Patients),
		slog.Int64("embeddings", counts.Embeddings),
		slog.Int64("missing_embeddings", counts.MissingEmbeddings))
	return counts, nil
}
