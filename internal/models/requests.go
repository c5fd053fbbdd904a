// Package models defines the request, vote, and result types shared by the
// evaluation pipeline, the consensus engine, and the MCP tool surface.
package models

import (
	"github.com/google/uuid"
)

// EvaluationKind identifies what is being reviewed.
type EvaluationKind int

const (
	KindPlan EvaluationKind = iota
	KindCode
	KindTests
	KindFinalCheck
)

// String returns the human-readable kind name used in prompts.
func (k EvaluationKind) String() string {
	switch k {
	case KindPlan:
		return "Plan"
	case KindCode:
		return "Code"
	case KindTests:
		return "Tests"
	case KindFinalCheck:
		return "Final Check"
	default:
		return "Unknown"
	}
}

// Tag returns the short kind tag used in cache keys.
func (k EvaluationKind) Tag() string {
	switch k {
	case KindPlan:
		return "plan"
	case KindCode:
		return "code"
	case KindTests:
		return "tests"
	case KindFinalCheck:
		return "final"
	default:
		return "unknown"
	}
}

// EvaluationRequest is one unit of review work. Requests are ephemeral:
// created at tool-call time and discarded once the result is returned.
type EvaluationRequest struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Language string         `json:"language"`
	Kind     EvaluationKind `json:"kind"`
	Context  string         `json:"context,omitempty"`
	FilePath string         `json:"file_path,omitempty"`
}

// NewEvaluationRequest creates a request with a fresh unique id.
func NewEvaluationRequest(content, language string, kind EvaluationKind) *EvaluationRequest {
	return &EvaluationRequest{
		ID:       uuid.NewString(),
		Content:  content,
		Language: language,
		Kind:     kind,
	}
}

// WithContext attaches free-text reviewer context.
func (r *EvaluationRequest) WithContext(ctx string) *EvaluationRequest {
	r.Context = ctx
	return r
}

// WithFilePath records the originating file, when known.
func (r *EvaluationRequest) WithFilePath(path string) *EvaluationRequest {
	r.FilePath = path
	return r
}
