package reviewer

import (
	"fmt"
	"strings"

	"github.com/harrison/tetrad/internal/models"
)

// BuildPrompt renders the shared evaluation prompt: a header naming the
// language and evaluation kind, the payload fenced as code, any caller
// context, and the fixed JSON response contract. Reviewers are expected,
// not required, to honor the contract; parsing has fallbacks.
func BuildPrompt(request *models.EvaluationRequest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Evaluate the following %s code for a %s review.\n\n",
		request.Language, strings.ToLower(request.Kind.String()))

	sb.WriteString("Code:\n```\n")
	sb.WriteString(request.Content)
	sb.WriteString("\n```\n\n")

	if request.Context != "" {
		sb.WriteString("Additional context:\n")
		sb.WriteString(request.Context)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Respond as JSON in the format:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"vote\": \"PASS\" | \"WARN\" | \"FAIL\",\n")
	sb.WriteString("  \"score\": 0-100,\n")
	sb.WriteString("  \"reasoning\": \"explanation\",\n")
	sb.WriteString("  \"issues\": [\"issue1\", \"issue2\"],\n")
	sb.WriteString("  \"suggestions\": [\"suggestion1\", \"suggestion2\"]\n")
	sb.WriteString("}\n")

	return sb.String()
}
