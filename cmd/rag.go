package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"snowadmin/internal/cortex"
	"snowadmin/internal/snowflake"
	"snowadmin/pkg/errors"
)

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Check Cortex embeddings, completion, vector search, and prompt caching",
	RunE:  runRAG,
}

var ragBindings = map[string]string{
	"cortex.embed_model":    "embed-model",
	"cortex.complete_model": "complete-model",
}

func init() {
	ragCmd.Flags().String("embed-model", "", "EMBED_TEXT_768 model")
	ragCmd.Flags().String("complete-model", "", "COMPLETE model")
	rootCmd.AddCommand(ragCmd)
}

func runRAG(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd, ragBindings)
	if err != nil {
		return err
	}
	shared := s.cfg.Snowflake.SharedDatabase

	svc, err := s.connect(cmd, snowflake.Options{Database: shared, Schema: cortex.CacheSchema})
	if err != nil {
		return err
	}
	defer svc.Close()

	checker, err := cortex.NewChecker(svc, shared, s.cfg.Cortex.EmbedModel, s.cfg.Cortex.CompleteModel, s.logger)
	if err != nil {
		return err
	}
	results := checker.RunAll(cmd.Context())

	p := printer(cmd)
	p.Section("Snowflake Cortex RAG connectivity")
	for _, r := range results {
		p.Check(r.Name, r.Passed, r.Detail)
		for _, line := range r.Lines {
			p.Printf("        %s\n", line)
		}
	}
	passed := cortex.Passed(results)
	p.Summary(passed, len(results), "checks passed")

	if passed != len(results) {
		return errors.New(errors.ErrCodeSQLExecution, fmt.Sprintf("%d/%d RAG checks passed", passed, len(results)))
	}
	return nil
}
