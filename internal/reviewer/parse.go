package reviewer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harrison/tetrad/internal/models"
)

// Response is the structured reply a reviewer is asked to emit.
type Response struct {
	Vote        string   `json:"vote"`
	Score       int      `json:"score"`
	Reasoning   string   `json:"reasoning"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// ToVote converts a parsed response into a ModelVote for the named
// reviewer.
func (r *Response) ToVote(reviewer string) models.ModelVote {
	return models.ModelVote{
		Reviewer:    reviewer,
		Vote:        models.ParseVote(r.Vote),
		Score:       clampScore(r.Score),
		Reasoning:   r.Reasoning,
		Issues:      r.Issues,
		Suggestions: r.Suggestions,
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ParseResponse extracts the first balanced JSON object carrying "vote"
// and "score" from mixed reviewer output and deserializes it.
func ParseResponse(output, reviewer string) (*Response, error) {
	cleaned := stripCodeFences(output)

	candidate, ok := findBalancedJSON(cleaned)
	if !ok {
		return nil, models.ExecutorError(reviewer, fmt.Errorf("output contains no usable JSON"))
	}

	var resp Response
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return nil, models.ExecutorError(reviewer, fmt.Errorf("failed to decode JSON: %w", err))
	}
	return &resp, nil
}

// stripCodeFences unwraps ```...``` blocks, keeping their content in place.
func stripCodeFences(input string) string {
	result := input
	for {
		start := strings.Index(result, "```")
		if start < 0 {
			break
		}

		// Skip the fence line itself (```json etc).
		contentStart := start + 3
		if nl := strings.IndexByte(result[contentStart:], '\n'); nl >= 0 {
			contentStart += nl + 1
		}

		close := strings.Index(result[contentStart:], "```")
		if close < 0 {
			break
		}
		closePos := contentStart + close

		result = result[:start] + result[contentStart:closePos] + result[closePos+3:]
	}
	return result
}

// findBalancedJSON scans left-to-right for the first balanced {...} whose
// body contains both "vote" and "score". The depth counter tracks string
// state and backslash escapes; a naive brace search misreads output where
// reviewers echo the prompt.
func findBalancedJSON(input string) (string, bool) {
	for i := 0; i < len(input); i++ {
		if input[i] != '{' {
			continue
		}
		end, ok := findClosingBrace(input, i)
		if !ok {
			continue
		}
		candidate := input[i : end+1]
		if strings.Contains(candidate, `"vote"`) && strings.Contains(candidate, `"score"`) {
			return candidate, true
		}
	}
	return "", false
}

func findClosingBrace(input string, start int) (int, bool) {
	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(input); i++ {
		if escapeNext {
			escapeNext = false
			continue
		}
		switch input[i] {
		case '\\':
			if inString {
				escapeNext = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}
