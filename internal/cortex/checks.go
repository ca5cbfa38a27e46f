package cortex

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"snowadmin/internal/snowflake"
)

// CacheSchema holds the prompt-cache tables.
const CacheSchema = "CORTEX_FUNCTIONS"

// CacheTables are the prompt-cache tables created by the Cortex setup script.
var CacheTables = []string{"PROMPT_CACHE", "CORTEX_USAGE_LOG", "COMPRESSION_PATTERNS"}

var sampleTexts = []string{
	"The patient has diabetes and hypertension",
	"Claim for routine checkup and blood work",
	"Emergency room visit for chest pain",
	"Prescription refill for insulin",
}

var knowledgeDocs = []string{
	"NexusChat is an AI-powered chat application built on LibreChat",
	"The system uses Snowflake for authentication and data storage",
	"RAG capabilities are provided by Snowflake Cortex AI",
	"Vector embeddings enable semantic search across documents",
	"The application supports multiple AI models including Claude and GPT",
}

const (
	searchText    = "diabetes medication"
	questionText  = "How does semantic search work?"
	minRelevance  = 0.5
	retrieveLimit = 3
)

// Result is the outcome of one check.
type Result struct {
	Name   string   `yaml:"name"`
	Passed bool     `yaml:"passed"`
	Detail string   `yaml:"detail,omitempty"`
	Lines  []string `yaml:"lines,omitempty"`
	Err    error    `yaml:"-"`
}

// Checker runs the RAG connectivity checks. The session should already use
// a database and schema where temporary tables can be created.
type Checker struct {
	svc           *snowflake.Service
	sharedDB      string
	embedModel    string
	completeModel string
	logger        *slog.Logger
}

// NewChecker validates the model and database names.
func NewChecker(svc *snowflake.Service, sharedDB, embedModel, completeModel string, logger *slog.Logger) (*Checker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	if completeModel == "" {
		completeModel = DefaultCompleteModel
	}
	for _, m := range []string{embedModel, completeModel} {
		if err := ValidateModel(m); err != nil {
			return nil, err
		}
	}
	if err := snowflake.ValidateIdentifier(sharedDB); err != nil {
		return nil, err
	}
	return &Checker{
		svc:           svc,
		sharedDB:      sharedDB,
		embedModel:    embedModel,
		completeModel: completeModel,
		logger:        logger,
	}, nil
}

// RunAll runs every check in order. A failing check does not stop the
// ones after it.
func (c *Checker) RunAll(ctx context.Context) []Result {
	checks := []func(context.Context) Result{
		c.EmbedAvailability,
		c.CompleteAvailability,
		c.VectorSearch,
		c.CacheInfrastructure,
		c.EndToEnd,
	}
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		r := check(ctx)
		if r.Passed {
			c.logger.InfoContext(ctx, "check passed", slog.String("check", r.Name), slog.String("detail", r.Detail))
		} else {
			c.logger.ErrorContext(ctx, "check failed", slog.String("check", r.Name), slog.Any("error", r.Err))
		}
		results = append(results, r)
	}
	return results
}

// Passed counts passing results.
func Passed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Passed {
			n++
		}
	}
	return n
}

func fail(r Result, err error) Result {
	r.Passed = false
	r.Err = err
	if r.Detail == "" {
		r.Detail = err.Error()
	}
	return r
}

// EmbedAvailability embeds a fixed sentence and reports the dimension.
func (c *Checker) EmbedAvailability(ctx context.Context) Result {
	r := Result{Name: "Cortex Embedding Function"}

	raw, err := c.svc.QueryString(ctx, "SELECT "+EmbedExpr(c.embedModel, "?"),
		"This is a test sentence for embedding generation")
	if err != nil {
		return fail(r, err)
	}
	vec, err := ParseVector(raw)
	if err != nil {
		return fail(r, err)
	}
	if len(vec) == 0 {
		return fail(r, fmt.Errorf("EMBED_TEXT_768 returned an empty vector"))
	}

	r.Passed = true
	r.Detail = fmt.Sprintf("%d dimensions", len(vec))
	return r
}

// CompleteAvailability asks the completion model a trivial question.
func (c *Checker) CompleteAvailability(ctx context.Context) Result {
	r := Result{Name: "Cortex LLM Complete Function"}

	query := fmt.Sprintf("SELECT SNOWFLAKE.CORTEX.COMPLETE('%s', ?)", c.completeModel)
	resp, err := c.svc.QueryString(ctx, query, "What is 2+2? Answer with just the number.")
	if err != nil {
		r.Lines = []string{"Cortex AI may not be enabled for this account"}
		return fail(r, err)
	}
	if resp == "" || resp == "NULL" {
		return fail(r, fmt.Errorf("COMPLETE returned no result"))
	}

	r.Passed = true
	r.Detail = "response: " + resp
	return r
}

// loadTemp creates a temporary table of (id, text, embedding) rows.
func (c *Checker) loadTemp(ctx context.Context, ddl, insert string, texts []string) error {
	if _, err := c.svc.Exec(ctx, ddl); err != nil {
		return err
	}
	for i, text := range texts {
		if _, err := c.svc.Exec(ctx, insert, i+1, text, text); err != nil {
			return err
		}
	}
	return nil
}

// VectorSearch ranks sample texts against a query by cosine similarity.
func (c *Checker) VectorSearch(ctx context.Context) Result {
	r := Result{Name: "Vector Similarity Search"}

	err := c.loadTemp(ctx,
		"CREATE OR REPLACE TEMP TABLE TEST_EMBEDDINGS (ID INTEGER, TEXT VARCHAR, EMBEDDING VECTOR(FLOAT, 768))",
		"INSERT INTO TEST_EMBEDDINGS (ID, TEXT, EMBEDDING) SELECT ?, ?, "+EmbedExpr(c.embedModel, "?"),
		sampleTexts)
	if err != nil {
		return fail(r, err)
	}

	query := fmt.Sprintf(`WITH query_embedding AS (SELECT %s AS qemb)
SELECT t.ID, t.TEXT, VECTOR_COSINE_SIMILARITY(t.EMBEDDING, q.qemb) AS similarity_score
FROM TEST_EMBEDDINGS t, query_embedding q
ORDER BY similarity_score DESC
LIMIT %d`, EmbedExpr(c.embedModel, "?"), retrieveLimit)
	rs, err := c.svc.Query(ctx, query, searchText)
	if err != nil {
		return fail(r, err)
	}

	for _, row := range rs.Rows {
		if len(row) < 3 {
			continue
		}
		r.Lines = append(r.Lines, fmt.Sprintf("[%s] %s %s", row[0], score(row[2]), row[1]))
	}
	r.Passed = true
	r.Detail = fmt.Sprintf("%d results for %q", len(rs.Rows), searchText)
	return r
}

// CacheInfrastructure checks the prompt-cache schema and counts the rows of
// each cache table.
func (c *Checker) CacheInfrastructure(ctx context.Context) Result {
	r := Result{Name: "Cortex Cache Infrastructure"}

	schemas, err := c.svc.QueryColumn(ctx, 1,
		fmt.Sprintf("SHOW SCHEMAS LIKE '%s' IN DATABASE %s", CacheSchema, c.sharedDB))
	if err != nil {
		return fail(r, err)
	}
	if len(schemas) == 0 {
		r.Lines = []string{"Run 02-token-efficient-cortex.sql to create it"}
		return fail(r, fmt.Errorf("%s schema does not exist in %s", CacheSchema, c.sharedDB))
	}

	for _, table := range CacheTables {
		n, err := c.svc.QueryInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s.%s.%s", c.sharedDB, CacheSchema, table))
		if err != nil {
			r.Lines = append(r.Lines, "Caching is optional; RAG works without it")
			return fail(r, err)
		}
		r.Lines = append(r.Lines, fmt.Sprintf("%s: %d rows", table, n))
	}
	r.Passed = true
	r.Detail = fmt.Sprintf("%d cache tables present", len(CacheTables))
	return r
}

// EndToEnd loads a small knowledge base, retrieves documents relevant to a
// question, and builds the augmented prompt.
func (c *Checker) EndToEnd(ctx context.Context) Result {
	r := Result{Name: "End-to-End RAG Workflow"}

	err := c.loadTemp(ctx,
		`CREATE OR REPLACE TEMP TABLE KNOWLEDGE_BASE (
  DOC_ID INTEGER, CONTENT TEXT, EMBEDDING VECTOR(FLOAT, 768),
  CREATED_AT TIMESTAMP_NTZ DEFAULT CURRENT_TIMESTAMP())`,
		"INSERT INTO KNOWLEDGE_BASE (DOC_ID, CONTENT, EMBEDDING) SELECT ?, ?, "+EmbedExpr(c.embedModel, "?"),
		knowledgeDocs)
	if err != nil {
		return fail(r, err)
	}

	query := fmt.Sprintf(`WITH query_emb AS (SELECT %s AS qemb)
SELECT kb.CONTENT, VECTOR_COSINE_SIMILARITY(kb.EMBEDDING, q.qemb) AS relevance
FROM KNOWLEDGE_BASE kb, query_emb q
WHERE VECTOR_COSINE_SIMILARITY(kb.EMBEDDING, q.qemb) > %g
ORDER BY relevance DESC
LIMIT %d`, EmbedExpr(c.embedModel, "?"), minRelevance, retrieveLimit)
	rs, err := c.svc.Query(ctx, query, questionText)
	if err != nil {
		return fail(r, err)
	}

	docs := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) < 2 {
			continue
		}
		docs = append(docs, row[0])
		r.Lines = append(r.Lines, fmt.Sprintf("%s %s", score(row[1]), row[0]))
	}
	prompt := BuildPrompt(docs, questionText)

	r.Passed = true
	r.Detail = fmt.Sprintf("retrieved %d documents, augmented prompt %d chars", len(docs), len(prompt))
	return r
}

func score(raw string) string {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%.4f", f)
}
