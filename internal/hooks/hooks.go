// Package hooks lets callers observe and steer the evaluation pipeline.
// Hooks register for one of four lifecycle events and run in registration
// order. Only pre-evaluation hooks can alter the pipeline; the rest are
// observational.
package hooks

import (
	"sync"

	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

// Event is an evaluation lifecycle point.
type Event int

const (
	PreEvaluate Event = iota
	PostEvaluate
	OnConsensus
	OnBlock
)

func (e Event) String() string {
	switch e {
	case PreEvaluate:
		return "pre_evaluate"
	case PostEvaluate:
		return "post_evaluate"
	case OnConsensus:
		return "on_consensus"
	case OnBlock:
		return "on_block"
	default:
		return "unknown"
	}
}

// Action is a hook's verdict on the pipeline.
type Action int

const (
	// ActionContinue lets the pipeline proceed unchanged.
	ActionContinue Action = iota
	// ActionSkip aborts the evaluation; the caller substitutes a
	// pass-through result.
	ActionSkip
	// ActionModify replaces the request before the fleet sees it.
	ActionModify
)

// Result carries a hook's action and, for ActionModify, the replacement
// request.
type Result struct {
	Action  Action
	Request *models.EvaluationRequest
}

// Continue is the no-op hook result.
func Continue() Result {
	return Result{Action: ActionContinue}
}

// Hook observes one lifecycle event. result is nil for PreEvaluate.
type Hook interface {
	Name() string
	Run(event Event, request *models.EvaluationRequest, result *models.EvaluationResult) Result
}

// Registry holds ordered hook lists per event.
type Registry struct {
	mu    sync.Mutex
	hooks map[Event][]Hook
	log   *logger.ConsoleLogger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.ConsoleLogger) *Registry {
	return &Registry{
		hooks: make(map[Event][]Hook),
		log:   log,
	}
}

// Register appends a hook to an event's list.
func (r *Registry) Register(event Event, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[event] = append(r.hooks[event], hook)
	r.log.Debug("registered hook %q for %s", hook.Name(), event)
}

func (r *Registry) snapshot(event Event) []Hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Hook(nil), r.hooks[event]...)
}

// RunPre runs pre-evaluation hooks in order. The first non-Continue result
// short-circuits the chain; ActionModify swaps the request for subsequent
// hooks and the returned result.
func (r *Registry) RunPre(request *models.EvaluationRequest) Result {
	current := request
	for _, hook := range r.snapshot(PreEvaluate) {
		res := hook.Run(PreEvaluate, current, nil)
		switch res.Action {
		case ActionContinue:
			continue
		case ActionModify:
			if res.Request != nil {
				current = res.Request
			}
			return Result{Action: ActionModify, Request: current}
		default:
			r.log.Info("hook %q skipped request %s", hook.Name(), request.ID)
			return res
		}
	}
	return Result{Action: ActionContinue, Request: current}
}

// RunPost notifies post-evaluation hooks. Their results are ignored.
func (r *Registry) RunPost(request *models.EvaluationRequest, result *models.EvaluationResult) {
	for _, hook := range r.snapshot(PostEvaluate) {
		hook.Run(PostEvaluate, request, result)
	}
}

// RunConsensus notifies hooks after consensus was reached.
func (r *Registry) RunConsensus(request *models.EvaluationRequest, result *models.EvaluationResult) {
	for _, hook := range r.snapshot(OnConsensus) {
		hook.Run(OnConsensus, request, result)
	}
}

// RunBlock notifies hooks after a blocking decision.
func (r *Registry) RunBlock(request *models.EvaluationRequest, result *models.EvaluationResult) {
	for _, hook := range r.snapshot(OnBlock) {
		hook.Run(OnBlock, request, result)
	}
}
