// Package cortex checks that Snowflake Cortex functions, vector search, and
// the prompt-cache tables are usable for retrieval-augmented generation.
package cortex

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"snowadmin/pkg/errors"
)

// Default models.
const (
	DefaultEmbedModel    = "snowflake-arctic-embed-m"
	DefaultCompleteModel = "mistral-large2"
)

// EmbeddingDimension is the vector size of EMBED_TEXT_768.
const EmbeddingDimension = 768

var modelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateModel checks a model name before it is placed in a statement as
// a string literal.
func ValidateModel(name string) error {
	if !modelPattern.MatchString(name) {
		return errors.ValidationError("model", name, "model names may contain only letters, digits, '.', '_' and '-'")
	}
	return nil
}

// EmbedExpr returns the EMBED_TEXT_768 call for model over arg, which is
// either a column reference or a bind placeholder.
func EmbedExpr(model, arg string) string {
	return fmt.Sprintf("SNOWFLAKE.CORTEX.EMBED_TEXT_768('%s', %s)", model, arg)
}

// ParseVector decodes a vector value as returned by the driver, e.g.
// "[0.1,-0.2,...]".
func ParseVector(raw string) ([]float64, error) {
	var v []float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLExecution, "Failed to decode embedding vector")
	}
	return v, nil
}

// BuildPrompt augments question with retrieved documents.
func BuildPrompt(documents []string, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\nAnswer:", strings.Join(documents, "\n"), question)
}
