// Package pattern provides stateless code analysis utilities: normalization,
// SHA-256 signatures, keyword extraction, similarity scoring, and language
// detection. The reasoning bank keys its patterns on these signatures.
package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signature returns the hex SHA-256 of the normalized code. Two snippets
// differing only in comments or blank lines share a signature.
func Signature(code string) string {
	normalized := Normalize(code)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Normalize strips blank lines and comment-leading lines, trims the rest,
// and rejoins with newlines.
func Normalize(code string) string {
	var kept []string
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" ||
			strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "/*") ||
			strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "*/") {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// keywordRule maps any-of trigger substrings to an emitted keyword.
type keywordRule struct {
	keyword  string
	triggers []string
}

// Vocabulary order is stable so extracted keyword slices are deterministic.
var keywordRules = []keywordRule{
	// security
	{"sql", []string{"sql", "query"}},
	{"credentials", []string{"password", "secret", "credential"}},
	{"code_execution", []string{"eval", "exec"}},
	{"network", []string{"http", "request", "fetch"}},
	{"file_io", []string{"file", "read", "write"}},
	// logic
	{"loop", []string{"for ", "while ", "loop"}},
	{"null_access", []string{"unwrap", ".get(", "expect("}},
	{"panic", []string{"panic", "crash"}},
	{"unsafe", []string{"unsafe"}},
	{"async", []string{"async", "await"}},
	{"concurrency", []string{"mutex", "lock", "atomic"}},
	// performance
	{"clone", []string{"clone()"}},
	{"allocation", []string{"vec!", "push("}},
	{"collect", []string{"collect()"}},
	// style
	{"todo", []string{"todo", "fixme"}},
}

// ExtractKeywords returns the pattern-indicative keywords found in code.
func ExtractKeywords(code string) []string {
	lower := strings.ToLower(code)
	var keywords []string
	for _, rule := range keywordRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(lower, trigger) {
				keywords = append(keywords, rule.keyword)
				break
			}
		}
	}
	return keywords
}

// Similarity scores two snippets in [0,1]: 1.0 on signature equality,
// otherwise the Jaccard index of their keyword sets.
func Similarity(a, b string) float64 {
	if Signature(a) == Signature(b) {
		return 1.0
	}

	setA := toSet(ExtractKeywords(a))
	setB := toSet(ExtractKeywords(b))
	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for kw := range setA {
		if setB[kw] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func toSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		set[kw] = true
	}
	return set
}

// languageMarker pairs a language name with its first-hit markers.
// Ordered: rust before go so "fn " wins over "go " in mixed text.
var languageMarkers = []struct {
	language string
	markers  []string
}{
	{"rust", []string{"fn ", "let ", "impl ", "struct ", "enum "}},
	{"python", []string{"def ", "import ", "class ", "elif "}},
	{"javascript", []string{"const ", "function ", "=>", "export "}},
	{"go", []string{"func ", "package ", "go "}},
	{"java", []string{"public class", "static void main"}},
}

// DetectLanguage guesses the language by substring markers. Returns
// "unknown" when nothing matches.
func DetectLanguage(code string) string {
	lower := strings.ToLower(code)
	for _, lm := range languageMarkers {
		for _, marker := range lm.markers {
			if strings.Contains(lower, marker) {
				return lm.language
			}
		}
	}
	return "unknown"
}

// CategorizeCode maps extracted keywords to coarse categories. Returns
// ["general"] when no category fires.
func CategorizeCode(code string) []string {
	keywords := toSet(ExtractKeywords(code))
	var categories []string

	hasAny := func(kws ...string) bool {
		for _, kw := range kws {
			if keywords[kw] {
				return true
			}
		}
		return false
	}

	if hasAny("sql", "credentials", "code_execution") {
		categories = append(categories, "security")
	}
	if hasAny("network", "file_io") {
		categories = append(categories, "io")
	}
	if hasAny("loop", "null_access", "panic") {
		categories = append(categories, "logic")
	}
	if hasAny("async", "concurrency") {
		categories = append(categories, "concurrency")
	}
	if hasAny("clone", "allocation", "collect") {
		categories = append(categories, "performance")
	}

	if len(categories) == 0 {
		categories = append(categories, "general")
	}
	return categories
}
