package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

type stubHook struct {
	name   string
	result Result
	calls  int
	events []Event
}

func (s *stubHook) Name() string { return s.name }

func (s *stubHook) Run(event Event, request *models.EvaluationRequest, result *models.EvaluationResult) Result {
	s.calls++
	s.events = append(s.events, event)
	return s.result
}

func testResult(decision models.Decision, score int) *models.EvaluationResult {
	return &models.EvaluationResult{Decision: decision, Score: score}
}

func TestRunPreContinues(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	first := &stubHook{name: "first", result: Continue()}
	second := &stubHook{name: "second", result: Continue()}
	reg.Register(PreEvaluate, first)
	reg.Register(PreEvaluate, second)

	req := models.NewEvaluationRequest("code", "go", models.KindCode)
	res := reg.RunPre(req)

	assert.Equal(t, ActionContinue, res.Action)
	assert.Same(t, req, res.Request)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestRunPreShortCircuitsOnSkip(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	skipper := &stubHook{name: "skipper", result: Result{Action: ActionSkip}}
	after := &stubHook{name: "after", result: Continue()}
	reg.Register(PreEvaluate, skipper)
	reg.Register(PreEvaluate, after)

	res := reg.RunPre(models.NewEvaluationRequest("code", "go", models.KindCode))

	assert.Equal(t, ActionSkip, res.Action)
	assert.Equal(t, 0, after.calls)
}

func TestRunPreModifyReplacesRequest(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	replacement := models.NewEvaluationRequest("modified", "go", models.KindCode)
	reg.Register(PreEvaluate, &stubHook{
		name:   "modifier",
		result: Result{Action: ActionModify, Request: replacement},
	})

	res := reg.RunPre(models.NewEvaluationRequest("original", "go", models.KindCode))

	require.Equal(t, ActionModify, res.Action)
	assert.Same(t, replacement, res.Request)
}

func TestObservationalEventsIgnoreResults(t *testing.T) {
	reg := NewRegistry(logger.Nop())
	post := &stubHook{name: "post", result: Result{Action: ActionSkip}}
	block := &stubHook{name: "block", result: Continue()}
	reg.Register(PostEvaluate, post)
	reg.Register(OnBlock, block)

	req := models.NewEvaluationRequest("code", "go", models.KindCode)
	reg.RunPost(req, testResult(models.DecisionPass, 90))
	reg.RunBlock(req, testResult(models.DecisionBlock, 30))
	reg.RunConsensus(req, testResult(models.DecisionPass, 90))

	assert.Equal(t, 1, post.calls)
	assert.Equal(t, []Event{PostEvaluate}, post.events)
	assert.Equal(t, 1, block.calls)
}

func TestMetricsHookCounts(t *testing.T) {
	hook := NewMetricsHook()
	req := models.NewEvaluationRequest("code", "go", models.KindCode)

	hook.Run(PostEvaluate, req, testResult(models.DecisionPass, 90))
	hook.Run(PostEvaluate, req, testResult(models.DecisionPass, 80))
	hook.Run(PostEvaluate, req, testResult(models.DecisionRevise, 60))
	hook.Run(PostEvaluate, req, testResult(models.DecisionBlock, 30))
	// Non-post events must not count.
	hook.Run(OnBlock, req, testResult(models.DecisionBlock, 30))

	m := hook.Snapshot()
	assert.Equal(t, int64(4), m.Total)
	assert.Equal(t, int64(2), m.Passes)
	assert.Equal(t, int64(1), m.Revises)
	assert.Equal(t, int64(1), m.Blocks)
	assert.InDelta(t, 0.5, m.SuccessRate, 1e-9)
	assert.InDelta(t, 65.0, m.AverageScore, 1e-9)
}

func TestMetricsHookEmptySnapshot(t *testing.T) {
	m := NewMetricsHook().Snapshot()
	assert.Zero(t, m.Total)
	assert.Zero(t, m.SuccessRate)
	assert.Zero(t, m.AverageScore)
}
