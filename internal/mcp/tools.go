package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/tetrad/internal/cache"
	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/consensus"
	"github.com/harrison/tetrad/internal/hooks"
	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
	"github.com/harrison/tetrad/internal/pattern"
	"github.com/harrison/tetrad/internal/reasoning"
	"github.com/harrison/tetrad/internal/reviewer"
)

// Handler owns the evaluation pipeline behind the tool surface: the
// reviewer fleet, the consensus engine, the cache, the reasoning bank, the
// hook registry, and the confirmations ledger.
type Handler struct {
	cfg     *config.Config
	log     *logger.ConsoleLogger
	fleet   []reviewer.Reviewer
	engine  *consensus.Engine
	cache   *cache.EvaluationCache
	bank    *reasoning.Bank
	hooks   *hooks.Registry
	metrics *hooks.MetricsHook

	confMu        sync.RWMutex
	confirmations map[string]bool

	judgedSinceConsolidate int
}

// NewHandler wires the pipeline from config. The reasoning bank is opened
// only when enabled; a nil bank disables retrieval and judgment.
func NewHandler(cfg *config.Config, log *logger.ConsoleLogger) (*Handler, error) {
	h := &Handler{
		cfg:           cfg,
		log:           log,
		fleet:         reviewer.NewFleet(cfg, log),
		engine:        consensus.NewEngine(cfg.Consensus),
		hooks:         hooks.NewRegistry(log),
		metrics:       hooks.NewMetricsHook(),
		confirmations: make(map[string]bool),
	}

	if cfg.Cache.Enabled {
		h.cache = cache.New(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTLSecs)*time.Second)
	}

	if cfg.Reasoning.Enabled {
		bank, err := reasoning.NewBank(cfg.Reasoning, log)
		if err != nil {
			return nil, err
		}
		h.bank = bank
	}

	loggingHook := hooks.NewLoggingHook(log)
	h.hooks.Register(hooks.PostEvaluate, loggingHook)
	h.hooks.Register(hooks.OnBlock, loggingHook)
	h.hooks.Register(hooks.PostEvaluate, h.metrics)

	return h, nil
}

// Close releases the handler's resources.
func (h *Handler) Close() error {
	if h.bank != nil {
		return h.bank.Close()
	}
	return nil
}

// Hooks exposes the registry so callers can add their own hooks.
func (h *Handler) Hooks() *hooks.Registry { return h.hooks }

// Metrics exposes the built-in counters.
func (h *Handler) Metrics() *hooks.MetricsHook { return h.metrics }

// Bank exposes the reasoning bank; nil when disabled.
func (h *Handler) Bank() *reasoning.Bank { return h.bank }

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Tools enumerates the tool directory for tools/list.
func (h *Handler) Tools() []Tool {
	return []Tool{
		{
			Name:        "tetrad_review_plan",
			Description: "Evaluate an implementation plan through multi-reviewer consensus",
			InputSchema: objectSchema(map[string]any{
				"plan":    stringProp("The plan text to evaluate"),
				"context": stringProp("Additional context for the reviewers"),
			}, "plan"),
		},
		{
			Name:        "tetrad_review_code",
			Description: "Evaluate source code through multi-reviewer consensus",
			InputSchema: objectSchema(map[string]any{
				"code":      stringProp("The source code to evaluate"),
				"language":  stringProp("Programming language (auto-detected when omitted)"),
				"file_path": stringProp("Path of the file the code came from"),
				"context":   stringProp("Additional context for the reviewers"),
			}, "code"),
		},
		{
			Name:        "tetrad_review_tests",
			Description: "Evaluate test code through multi-reviewer consensus",
			InputSchema: objectSchema(map[string]any{
				"tests":    stringProp("The test code to evaluate"),
				"language": stringProp("Programming language (auto-detected when omitted)"),
				"context":  stringProp("Additional context for the reviewers"),
			}, "tests"),
		},
		{
			Name:        "tetrad_confirm",
			Description: "Record agreement or disagreement with a prior evaluation result",
			InputSchema: objectSchema(map[string]any{
				"request_id": stringProp("The evaluation request id being confirmed"),
				"agreed":     map[string]any{"type": "boolean", "description": "Whether the result is accepted"},
				"notes":      stringProp("Optional notes about the decision"),
			}, "request_id", "agreed"),
		},
		{
			Name:        "tetrad_final_check",
			Description: "Run a final certification review over code",
			InputSchema: objectSchema(map[string]any{
				"code":                stringProp("The source code to certify"),
				"language":            stringProp("Programming language (auto-detected when omitted)"),
				"previous_request_id": stringProp("Request id of a prior review that must be confirmed first"),
			}, "code"),
		},
		{
			Name:        "tetrad_status",
			Description: "Report reviewer availability, cache statistics, and consensus configuration",
			InputSchema: objectSchema(map[string]any{}),
		},
	}
}

// Call dispatches one tool invocation. Tool-level failures come back as
// isError results, never as Go errors.
func (h *Handler) Call(ctx context.Context, name string, arguments json.RawMessage) ToolResult {
	switch name {
	case "tetrad_review_plan":
		return h.reviewPlan(ctx, arguments)
	case "tetrad_review_code":
		return h.reviewCode(ctx, arguments)
	case "tetrad_review_tests":
		return h.reviewTests(ctx, arguments)
	case "tetrad_confirm":
		return h.confirm(arguments)
	case "tetrad_final_check":
		return h.finalCheck(ctx, arguments)
	case "tetrad_status":
		return h.status(ctx)
	default:
		return ErrorResult(fmt.Sprintf("Unknown tool: %s", name))
	}
}

// reviewPayload is the serialized outcome of a review tool.
type reviewPayload struct {
	RequestID         string                      `json:"request_id"`
	Decision          models.Decision             `json:"decision"`
	Score             int                         `json:"score"`
	ConsensusAchieved bool                        `json:"consensus_achieved"`
	Confidence        float64                     `json:"confidence"`
	Votes             map[string]models.ModelVote `json:"votes"`
	Findings          []models.Finding            `json:"findings"`
	Feedback          string                      `json:"feedback"`
}

func (h *Handler) renderResult(result *models.EvaluationResult) ToolResult {
	return JSONResult(reviewPayload{
		RequestID:         result.RequestID,
		Decision:          result.Decision,
		Score:             result.Score,
		ConsensusAchieved: result.ConsensusAchieved,
		Confidence:        h.engine.Confidence(result),
		Votes:             result.Votes,
		Findings:          result.Findings,
		Feedback:          result.Feedback,
	})
}

func (h *Handler) reviewPlan(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args struct {
		Plan    string `json:"plan"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if args.Plan == "" {
		return ErrorResult("Missing required argument: plan")
	}

	request := models.NewEvaluationRequest(args.Plan, "markdown", models.KindPlan).WithContext(args.Context)
	result, err := h.evaluateInternal(ctx, request, false)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Evaluation failed: %v", err))
	}
	return h.renderResult(result)
}

func (h *Handler) reviewCode(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args struct {
		Code     string `json:"code"`
		Language string `json:"language"`
		FilePath string `json:"file_path"`
		Context  string `json:"context"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if args.Code == "" {
		return ErrorResult("Missing required argument: code")
	}
	if args.Language == "" {
		args.Language = pattern.DetectLanguage(args.Code)
	}

	request := models.NewEvaluationRequest(args.Code, args.Language, models.KindCode).
		WithContext(args.Context).
		WithFilePath(args.FilePath)
	result, err := h.evaluateInternal(ctx, request, true)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Evaluation failed: %v", err))
	}
	return h.renderResult(result)
}

func (h *Handler) reviewTests(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args struct {
		Tests    string `json:"tests"`
		Language string `json:"language"`
		Context  string `json:"context"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if args.Tests == "" {
		return ErrorResult("Missing required argument: tests")
	}
	if args.Language == "" {
		args.Language = pattern.DetectLanguage(args.Tests)
	}

	request := models.NewEvaluationRequest(args.Tests, args.Language, models.KindTests).WithContext(args.Context)
	result, err := h.evaluateInternal(ctx, request, false)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Evaluation failed: %v", err))
	}
	return h.renderResult(result)
}

func (h *Handler) confirm(arguments json.RawMessage) ToolResult {
	var args struct {
		RequestID string `json:"request_id"`
		Agreed    bool   `json:"agreed"`
		Notes     string `json:"notes"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if args.RequestID == "" {
		return ErrorResult("Missing required argument: request_id")
	}

	h.confMu.Lock()
	h.confirmations[args.RequestID] = args.Agreed
	h.confMu.Unlock()

	if args.Notes != "" {
		h.log.Info("confirmation for %s (agreed=%v): %s", args.RequestID, args.Agreed, args.Notes)
	}

	return JSONResult(map[string]any{
		"request_id":  args.RequestID,
		"recorded":    true,
		"can_proceed": args.Agreed,
	})
}

func (h *Handler) finalCheck(ctx context.Context, arguments json.RawMessage) ToolResult {
	var args struct {
		Code              string `json:"code"`
		Language          string `json:"language"`
		PreviousRequestID string `json:"previous_request_id"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return ErrorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if args.Code == "" {
		return ErrorResult("Missing required argument: code")
	}
	if args.Language == "" {
		args.Language = pattern.DetectLanguage(args.Code)
	}

	request := models.NewEvaluationRequest(args.Code, args.Language, models.KindFinalCheck)
	result, err := h.evaluateInternal(ctx, request, false)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Evaluation failed: %v", err))
	}

	meetsRequirements := result.ConsensusAchieved && result.Score >= h.engine.MinScore()
	certified := meetsRequirements
	message := "Certification granted"

	if !meetsRequirements {
		message = "Requirements not met: consensus and minimum score are required"
	}
	if args.PreviousRequestID != "" {
		h.confMu.RLock()
		confirmed := h.confirmations[args.PreviousRequestID]
		h.confMu.RUnlock()
		if !confirmed {
			certified = false
			message = fmt.Sprintf("Prior confirmation pending for request %s", args.PreviousRequestID)
		}
	}

	payload := map[string]any{
		"request_id":         request.ID,
		"certified":          certified,
		"meets_requirements": meetsRequirements,
		"score":              result.Score,
		"consensus_achieved": result.ConsensusAchieved,
		"message":            message,
		"feedback":           result.Feedback,
	}
	if certified {
		payload["certificate_id"] = "TETRAD-" + request.ID
	}
	return JSONResult(payload)
}

// reviewerStatus is one row of the status report.
type reviewerStatus struct {
	Name           string `json:"name"`
	Command        string `json:"command"`
	Specialization string `json:"specialization"`
	Available      bool   `json:"available"`
	Version        string `json:"version,omitempty"`
}

func (h *Handler) status(ctx context.Context) ToolResult {
	statuses := make([]reviewerStatus, len(h.fleet))

	var wg sync.WaitGroup
	for i, r := range h.fleet {
		wg.Add(1)
		go func(i int, r reviewer.Reviewer) {
			defer wg.Done()
			st := reviewerStatus{
				Name:           r.Name(),
				Command:        r.Command(),
				Specialization: r.Specialization(),
				Available:      r.IsAvailable(ctx),
			}
			if st.Available {
				if version, err := r.Version(ctx); err == nil {
					st.Version = version
				}
			}
			statuses[i] = st
		}(i, r)
	}
	wg.Wait()

	payload := map[string]any{
		"reviewers": statuses,
		"consensus": map[string]any{
			"rule":      h.engine.Rule().Name(),
			"min_score": h.engine.MinScore(),
			"max_loops": h.engine.MaxLoops(),
		},
		"reasoning_enabled": h.bank != nil,
		"metrics":           h.metrics.Snapshot(),
	}
	if h.cache != nil {
		payload["cache"] = h.cache.Stats()
	} else {
		payload["cache"] = nil
	}
	if h.bank != nil {
		if patterns, err := h.bank.CountPatterns(); err == nil {
			payload["pattern_count"] = patterns
		}
	}

	return JSONResult(payload)
}

// evaluateInternal is the shared review pipeline: hooks, cache, retrieval,
// parallel fan-out, consensus, judgment, cache insert.
func (h *Handler) evaluateInternal(ctx context.Context, request *models.EvaluationRequest, cacheable bool) (*models.EvaluationResult, error) {
	pre := h.hooks.RunPre(request)
	switch pre.Action {
	case hooks.ActionSkip:
		return &models.EvaluationResult{
			RequestID:         request.ID,
			Decision:          models.DecisionPass,
			Score:             100,
			ConsensusAchieved: true,
			Votes:             map[string]models.ModelVote{},
			Feedback:          "Evaluation skipped by pre-evaluation hook",
			Timestamp:         time.Now(),
		}, nil
	case hooks.ActionModify:
		request = pre.Request
	}

	if cacheable && h.cache != nil {
		if cached, ok := h.cache.GetByCode(request.Content, request.Language, request.Kind); ok {
			h.log.Debug("cache hit for request %s", request.ID)
			return cached, nil
		}
	}

	// Retrieval is observational: logged, never gating.
	if h.bank != nil {
		if matches, err := h.bank.Retrieve(request); err != nil {
			h.log.Warn("pattern retrieval failed: %v", err)
		} else if len(matches) > 0 {
			h.log.Info("found %d known pattern(s) relevant to request %s", len(matches), request.ID)
		}
	}

	votes := make(map[string]models.ModelVote)
	var votesMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range h.fleet {
		r := r
		g.Go(func() error {
			vote, err := r.Evaluate(gctx, request)
			if err != nil {
				if errors.Is(err, models.ErrExecutorTimeout) {
					h.log.Warn("%s timed out; dropping its vote", r.Name())
					return nil
				}
				h.log.Warn("%s failed (%v); substituting neutral vote", r.Name(), err)
				vote = models.ModelVote{
					Reviewer:  r.Name(),
					Vote:      models.VoteWarn,
					Score:     50,
					Reasoning: fmt.Sprintf("%s evaluation failed: %v", r.Name(), err),
				}
			}
			votesMu.Lock()
			votes[r.Name()] = vote
			votesMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := h.engine.Evaluate(votes, request.ID)

	h.hooks.RunPost(request, result)
	if result.ConsensusAchieved {
		h.hooks.RunConsensus(request, result)
	}
	if result.Decision == models.DecisionBlock {
		h.hooks.RunBlock(request, result)
	}

	// Bank failures never fail the evaluation.
	if h.bank != nil {
		if _, err := h.bank.Judge(request, result, 1, h.engine.MaxLoops()); err != nil {
			h.log.Warn("judgment failed: %v", err)
		} else {
			h.judgedSinceConsolidate++
			if interval := h.cfg.Reasoning.ConsolidationInterval; interval > 0 && h.judgedSinceConsolidate >= interval {
				h.judgedSinceConsolidate = 0
				if _, err := h.bank.Consolidate(); err != nil {
					h.log.Warn("consolidation failed: %v", err)
				}
			}
		}
	}

	if cacheable && h.cache != nil {
		h.cache.InsertByCode(request.Content, request.Language, request.Kind, result)
	}

	return result, nil
}
