package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snowadmin/internal/loader"
	"snowadmin/pkg/errors"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load an organization's claims and patients and generate claim embeddings",
	Example: `  snowadmin load --org HCS0001 --claims-file claims.csv --patients-file patients.csv
  snowadmin load --org HCS0001 --skip-embeddings --claims-file claims.csv`,
	RunE: runLoad,
}

var loadBindings = map[string]string{
	"loader.organization":    "org",
	"loader.claims_file":     "claims-file",
	"loader.patients_file":   "patients-file",
	"loader.batch_size":      "batch-size",
	"loader.skip_embeddings": "skip-embeddings",
}

func init() {
	f := loadCmd.Flags()
	f.String("org", "", "organization ID, e.g. HCS0001")
	f.String("claims-file", "", "claims CSV file")
	f.String("patients-file", "", "patients CSV file")
	f.Int("batch-size", loader.DefaultBatchSize, "rows per INSERT")
	f.Bool("skip-embeddings", false, "skip embedding generation")

	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, loadBindings)
	if err != nil {
		return err
	}
	lc := s.cfg.Loader
	if lc.Organization == "" {
		return errors.ValidationError("org", "", "--org is required")
	}

	ctx := cmd.Context()
	svc, err := s.connect(cmd, s.bundleOptions())
	if err != nil {
		return err
	}
	defer svc.Close()

	l, err := loader.New(ctx, svc, s.cfg.Snowflake.SharedDatabase, lc.Organization,
		loader.Options{BatchSize: lc.BatchSize, EmbedModel: s.cfg.Cortex.EmbedModel}, s.logger)
	if err != nil {
		return err
	}

	p := printer(cmd)
	if lc.ClaimsFile != "" {
		n, err := l.LoadClaims(ctx, lc.ClaimsFile)
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("Loaded %d claims into %s.CLAIMS.INSURANCE_CLAIMS", n, l.Tenant().Database))
	}
	if lc.PatientsFile != "" {
		n, err := l.LoadPatients(ctx, lc.PatientsFile)
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("Loaded %d patients into %s.PATIENTS.PATIENT_RECORDS", n, l.Tenant().Database))
	}
	if !lc.SkipEmbeddings {
		n, err := l.GenerateEmbeddings(ctx)
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("Generated %d embeddings", n))
	}

	counts, err := l.Validate(ctx)
	if err != nil {
		return err
	}

	p.Section("Data load complete for " + lc.Organization)
	p.KeyValue("Claims loaded", strconv.FormatInt(counts.Claims, 10))
	p.KeyValue("Patients loaded", strconv.FormatInt(counts.Patients, 10))
	p.KeyValue("Embeddings", strconv.FormatInt(counts.Embeddings, 10))
	if counts.MissingEmbeddings > 0 {
		p.Warning(fmt.Sprintf("Missing embeddings: %d", counts.MissingEmbeddings))
	}
	return nil
}
