package session

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"go.uber.org/zap"
)

// ResolveAndLoad decides which diagram the session shows and loads it.
// A share id takes priority over the session identity. Failures never
// escape; they become a save state, a log entry and LastError.
func (c *Controller) ResolveAndLoad(ctx context.Context) LoadOutcome {
	identity := c.beginLoad()
	defer c.endLoad()

	if shareID := strings.TrimSpace(c.query.ShareID()); shareID != "" {
		return c.importGist(ctx, shareID)
	}

	switch identity.Kind {
	case KindDiagram:
		if identity.ID == "" {
			return c.loadLatest(ctx)
		}
		return c.loadDiagram(ctx, identity.ID)
	case KindTemplate, KindLiveTemplate:
		return c.loadTemplate(ctx, identity)
	default:
		return c.loadLatest(ctx)
	}
}

// ImportGist replaces working state with a shared document. Saves issued while
// the import runs are skipped.
func (c *Controller) ImportGist(ctx context.Context, shareID string) LoadOutcome {
	c.beginLoad()
	defer c.endLoad()
	return c.importGist(ctx, strings.TrimSpace(shareID))
}

func (c *Controller) beginLoad() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true
	return c.identity
}

func (c *Controller) endLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
}

func (c *Controller) loadLatest(ctx context.Context) LoadOutcome {
	records, err := c.remote.GetLatest(ctx, 1)
	switch {
	case err != nil:
		c.logger.Warn("remote latest lookup failed; falling back to local store", zap.String("operation", opLoadLatest), zap.Error(err))
	case len(records) > 0:
		return c.adoptRemote(ctx, opLoadLatest, records[0])
	}

	diagram, found, err := c.local.QueryLatestByModifiedTime(ctx)
	if err != nil {
		return c.failLoad(opLoadLatest, reasonLocalReadFailed, ErrLoadFailure, err)
	}
	if !found {
		c.mu.Lock()
		c.identity = Identity{}
		c.mu.Unlock()
		c.prompter.PromptForDialect()
		return OutcomeNoDiagram
	}
	c.adopt(diagram, Identity{Kind: KindDiagram, ID: diagram.ID}, false)
	return OutcomeLoaded
}

func (c *Controller) loadDiagram(ctx context.Context, id string) LoadOutcome {
	record, found, err := c.remote.GetByID(ctx, id)
	switch {
	case err != nil:
		c.logger.Warn("remote lookup failed; falling back to local store", zap.String("operation", opLoadDiagram), zap.String("diagram_id", id), zap.Error(err))
	case found:
		return c.adoptRemote(ctx, opLoadDiagram, record)
	}

	diagram, found, err := c.local.Get(ctx, id)
	if err != nil {
		return c.failLoad(opLoadDiagram, reasonLocalReadFailed, ErrLoadFailure, err, zap.String("diagram_id", id))
	}
	if !found {
		c.mu.Lock()
		c.identity = Identity{}
		c.mu.Unlock()
		c.failLoad(opLoadDiagram, reasonNotFound, ErrNotFound, nil, zap.String("diagram_id", id))
		c.prompter.PromptForDialect()
		return OutcomeNotFound
	}
	c.adopt(diagram, Identity{Kind: KindDiagram, ID: diagram.ID}, false)
	return OutcomeLoaded
}

func (c *Controller) loadTemplate(ctx context.Context, identity Identity) LoadOutcome {
	template, found, err := c.local.GetTemplate(ctx, identity.ID)
	if err != nil {
		outcome := c.failLoad(opLoadTemplate, reasonLocalReadFailed, ErrLoadFailure, err, zap.String("template_id", identity.ID))
		c.prompter.PromptForDialect()
		return outcome
	}
	if !found {
		c.prompter.PromptForDialect()
		return OutcomeNoDiagram
	}
	c.adopt(template.AsDiagram(), identity, false)
	return OutcomeLoaded
}

// adoptRemote treats the remote row as authoritative: the local copy is
// overwritten before the row becomes working state.
func (c *Controller) adoptRemote(ctx context.Context, operation string, record diagrams.RemoteRecord) LoadOutcome {
	diagram, err := diagrams.FromRemoteRecord(record)
	if err != nil {
		return c.failLoad(operation, reasonMalformedRecord, ErrLoadFailure, err, zap.String("diagram_id", record.LocalID))
	}
	if err := c.local.Put(ctx, diagram); err != nil {
		return c.failLoad(operation, reasonLocalWriteFailed, ErrLoadFailure, err, zap.String("diagram_id", diagram.ID))
	}
	c.adopt(diagram, Identity{Kind: KindDiagram, ID: diagram.ID}, false)
	return OutcomeLoaded
}

func (c *Controller) failLoad(operation, reason string, kind, cause error, fields ...zap.Field) LoadOutcome {
	err := newServiceError(operation, reason, classify(kind, cause))
	c.logError(operation, reason, err, fields...)
	c.recordFailure(StateFailedToLoad, err)
	notice := NoticeLoadFailed
	if errors.Is(kind, ErrNotFound) {
		notice = NoticeDiagramNotFound
	}
	c.prompter.Notify(notice)
	return OutcomeFailed
}
