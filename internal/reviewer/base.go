package reviewer

import (
	"context"
	"strings"
	"time"

	"github.com/harrison/tetrad/internal/config"
	"github.com/harrison/tetrad/internal/logger"
)

// base carries the pieces every adapter shares: identity, the subprocess
// invoker, and the logger. Adapters embed it and add their Evaluate.
type base struct {
	name           string
	specialization string
	invoker        Invoker
	log            *logger.ConsoleLogger
}

func newBase(name, specialization string, cfg config.ExecutorConfig, log *logger.ConsoleLogger) base {
	if log == nil {
		log = logger.Nop()
	}
	return base{
		name:           name,
		specialization: specialization,
		invoker: Invoker{
			Command: cfg.Command,
			Args:    cfg.Args,
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		},
		log: log,
	}
}

func (b *base) Name() string           { return b.name }
func (b *base) Command() string        { return b.invoker.Command }
func (b *base) Specialization() string { return b.specialization }

func (b *base) IsAvailable(ctx context.Context) bool {
	return b.invoker.IsAvailable(ctx)
}

func (b *base) Version(ctx context.Context) (string, error) {
	return b.invoker.VersionString(ctx)
}

// stderrIndicatesError reports whether reviewer stderr output looks like a
// real failure. "Loaded cached credentials" is routine auth noise.
func stderrIndicatesError(stderr string) bool {
	if stderr == "" {
		return false
	}
	if !strings.Contains(stderr, "Error") && !strings.Contains(stderr, "error") {
		return false
	}
	return !strings.Contains(stderr, "Loaded cached credentials")
}
