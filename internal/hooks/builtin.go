package hooks

import (
	"sync/atomic"

	"github.com/harrison/tetrad/internal/logger"
	"github.com/harrison/tetrad/internal/models"
)

// LoggingHook logs every finished evaluation, with a louder line for
// blocking decisions.
type LoggingHook struct {
	log *logger.ConsoleLogger
}

// NewLoggingHook builds the hook around a logger.
func NewLoggingHook(log *logger.ConsoleLogger) *LoggingHook {
	return &LoggingHook{log: log}
}

func (h *LoggingHook) Name() string { return "logging" }

func (h *LoggingHook) Run(event Event, request *models.EvaluationRequest, result *models.EvaluationResult) Result {
	switch event {
	case PostEvaluate:
		h.log.Info("evaluation %s: decision=%s score=%d consensus=%v",
			request.ID, result.Decision, result.Score, result.ConsensusAchieved)
	case OnBlock:
		h.log.Warn("evaluation %s blocked with %d finding(s)", request.ID, len(result.Findings))
	}
	return Continue()
}

// MetricsHook keeps running counters over finished evaluations.
type MetricsHook struct {
	total    atomic.Int64
	passes   atomic.Int64
	revises  atomic.Int64
	blocks   atomic.Int64
	scoreSum atomic.Int64
}

// NewMetricsHook builds a zeroed metrics hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (h *MetricsHook) Name() string { return "metrics" }

func (h *MetricsHook) Run(event Event, request *models.EvaluationRequest, result *models.EvaluationResult) Result {
	if event != PostEvaluate {
		return Continue()
	}

	h.total.Add(1)
	h.scoreSum.Add(int64(result.Score))
	switch result.Decision {
	case models.DecisionPass:
		h.passes.Add(1)
	case models.DecisionRevise:
		h.revises.Add(1)
	case models.DecisionBlock:
		h.blocks.Add(1)
	}
	return Continue()
}

// Metrics is a point-in-time snapshot of the counters.
type Metrics struct {
	Total        int64   `json:"total_evaluations"`
	Passes       int64   `json:"passes"`
	Revises      int64   `json:"revises"`
	Blocks       int64   `json:"blocks"`
	SuccessRate  float64 `json:"success_rate"`
	AverageScore float64 `json:"average_score"`
}

// Snapshot reads the counters. Rates are 0 with no evaluations yet.
func (h *MetricsHook) Snapshot() Metrics {
	m := Metrics{
		Total:   h.total.Load(),
		Passes:  h.passes.Load(),
		Revises: h.revises.Load(),
		Blocks:  h.blocks.Load(),
	}
	if m.Total > 0 {
		m.SuccessRate = float64(m.Passes) / float64(m.Total)
		m.AverageScore = float64(h.scoreSum.Load()) / float64(m.Total)
	}
	return m
}
