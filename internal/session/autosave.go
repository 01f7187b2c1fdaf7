package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultAutosaveDebounce = 800 * time.Millisecond

type autosaveDecision int

const (
	autosaveSkip autosaveDecision = iota
	autosaveDefer
	autosaveNow
)

// AutosaverConfig describes an edit-driven save trigger.
type AutosaverConfig struct {
	Controller *Controller
	// Enabled mirrors the user's autosave setting. Explicit save requests
	// such as publishing to a gist are honored either way.
	Enabled  bool
	Debounce time.Duration
	Logger   *zap.Logger
}

// Autosaver watches working-state edits and saves once they settle.
type Autosaver struct {
	controller *Controller
	enabled    bool
	debounce   time.Duration
	logger     *zap.Logger
}

// NewAutosaver validates the configuration and constructs an Autosaver.
func NewAutosaver(cfg AutosaverConfig) (*Autosaver, error) {
	if cfg.Controller == nil {
		return nil, newServiceError(opAutosaverNew, reasonMissingController, errMissingController)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultAutosaveDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{
		controller: cfg.Controller,
		enabled:    cfg.Enabled,
		debounce:   debounce,
		logger:     logger,
	}, nil
}

// Run blocks until ctx is cancelled. Each edit re-arms the debounce timer;
// when it fires the working state is saved if it is dirty and non-empty and
// no save or load is running. A busy controller re-arms the timer instead.
func (a *Autosaver) Run(ctx context.Context) {
	timer := time.NewTimer(a.debounce)
	timer.Stop()
	armed := false
	defer timer.Stop()

	for {
		var fire <-chan time.Time
		if armed {
			fire = timer.C
		}
		select {
		case <-ctx.Done():
			return
		case <-a.controller.Changes():
			timer.Reset(a.debounce)
			armed = true
		case <-fire:
			armed = false
			switch a.controller.autosaveDecision(a.enabled) {
			case autosaveNow:
				result := a.controller.Save(ctx)
				a.logger.Debug("autosave", zap.String("result", result.String()))
			case autosaveDefer:
				timer.Reset(a.debounce)
				armed = true
			case autosaveSkip:
			}
		}
	}
}

func (c *Controller) autosaveDecision(enabled bool) autosaveDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading || c.state == StateSaving {
		return autosaveDefer
	}
	if c.saveRequested {
		return autosaveNow
	}
	if !enabled || c.revision == c.savedRevision || c.working.Empty() {
		return autosaveSkip
	}
	return autosaveNow
}
