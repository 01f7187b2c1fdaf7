package session

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/localstore"
	"go.uber.org/zap"
)

type saveSnapshot struct {
	diagram    diagrams.Diagram
	identity   Identity
	revision   uint64
	generation uint64
}

// Save persists working state: local store first, then the remote mirror.
func (c *Controller) Save(ctx context.Context) SaveResult {
	return c.save(ctx, false)
}

// SaveAsNew persists working state under a freshly generated identifier.
func (c *Controller) SaveAsNew(ctx context.Context) SaveResult {
	return c.save(ctx, true)
}

func (c *Controller) save(ctx context.Context, forceNew bool) SaveResult {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		c.logger.Warn("save skipped while loading", zap.String("operation", opSave), zap.String("reason", reasonSaveSkipped))
		return SaveSkipped
	}
	snapshot := saveSnapshot{
		diagram:    c.working.Clone(),
		identity:   c.identity,
		revision:   c.revision,
		generation: c.generation,
	}
	c.saveRequested = false
	c.mu.Unlock()

	c.transition(StateSaving)
	now := c.clock()
	snapshot.diagram.LastModified = now

	if snapshot.identity.IsTemplate() && !forceNew {
		return c.saveTemplate(ctx, snapshot, now)
	}
	return c.saveDiagram(ctx, snapshot, now, forceNew)
}

func (c *Controller) saveTemplate(ctx context.Context, snapshot saveSnapshot, now time.Time) SaveResult {
	id := snapshot.identity.ID
	if id == "" {
		return c.failSave(opSaveTemplate, reasonLocalWriteFailed, errMissingTemplateID)
	}
	template := diagrams.TemplateFromDiagram(id, false, snapshot.diagram)
	if err := c.local.UpdateTemplate(ctx, id, template); err != nil {
		return c.failSave(opSaveTemplate, reasonLocalWriteFailed, err, zap.String("template_id", id))
	}
	c.completeSave(snapshot, now)
	return SaveCompleted
}

func (c *Controller) saveDiagram(ctx context.Context, snapshot saveSnapshot, now time.Time, forceNew bool) SaveResult {
	c.query.ClearShareID()
	diagram := snapshot.diagram.Normalize()

	if forceNew || !diagram.Saved() {
		id, err := c.ids.NewID()
		if err != nil {
			return c.failSave(opSave, reasonIDFailed, err)
		}
		diagram.ID = id
		if _, err := c.local.Add(ctx, diagram); err != nil {
			return c.failSave(opSave, reasonLocalWriteFailed, err, zap.String("diagram_id", id))
		}
		c.adoptSavedID(snapshot.generation, id)
	} else {
		err := c.local.Update(ctx, diagram.ID, diagram)
		if errors.Is(err, localstore.ErrNotFound) {
			err = c.local.Put(ctx, diagram)
		}
		if err != nil {
			return c.failSave(opSave, reasonLocalWriteFailed, err, zap.String("diagram_id", diagram.ID))
		}
		c.adoptSavedID(snapshot.generation, diagram.ID)
	}

	record, err := diagrams.ToRemoteRecord(diagram, now)
	if err != nil {
		return c.failSave(opSave, reasonEncodeFailed, err, zap.String("diagram_id", diagram.ID))
	}
	if err := c.remote.Upsert(ctx, record); err != nil {
		return c.failSave(opSave, reasonRemoteUpsertFailed, err, zap.String("diagram_id", diagram.ID))
	}

	c.completeSave(snapshot, now)
	return SaveCompleted
}

// adoptSavedID binds the persisted identifier to working state unless a load
// replaced working state while the save was in flight.
func (c *Controller) adoptSavedID(generation uint64, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return
	}
	c.working.ID = id
	c.identity = Identity{Kind: KindDiagram, ID: id}
}

func (c *Controller) completeSave(snapshot saveSnapshot, now time.Time) {
	c.mu.Lock()
	current := c.generation == snapshot.generation
	if current {
		c.savedRevision = snapshot.revision
		c.working.LastModified = now
	}
	c.lastSaved = now
	c.lastErr = nil
	c.mu.Unlock()
	// A load that replaced working state mid-save leaves it unsaved.
	if !current {
		c.transition(StateIdle)
		return
	}
	c.transition(StateSaved)
}

func (c *Controller) failSave(operation, reason string, cause error, fields ...zap.Field) SaveResult {
	err := newServiceError(operation, reason, classify(ErrSaveFailure, cause))
	c.logError(operation, reason, err, fields...)
	c.recordFailure(StateError, err)
	c.prompter.Notify(NoticeSaveFailed)
	return SaveFailed
}
