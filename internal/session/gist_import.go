package session

import (
	"context"

	"go.uber.org/zap"
)

// importGist hydrates working state from a shared document. A diagram that was
// already imported from the same share id becomes the session identity before
// the document is fetched, so re-importing refreshes that copy instead of
// creating a duplicate.
func (c *Controller) importGist(ctx context.Context, shareID string) LoadOutcome {
	if shareID == "" {
		return c.failLoad(opImportGist, reasonMissingShareID, ErrImportFailure, errMissingShareID)
	}
	existing, found, err := c.local.FindByImportedGistID(ctx, shareID)
	if err != nil {
		return c.failLoad(opImportGist, reasonLookupFailed, ErrLoadFailure, err, zap.String("share_id", shareID))
	}

	identity := Identity{Kind: KindDiagram}
	if found {
		identity.ID = existing.ID
	}
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	if c.gist == nil {
		return c.failLoad(opImportGist, reasonFetchFailed, ErrImportFailure, errMissingGistFetcher, zap.String("share_id", shareID))
	}
	document, err := c.gist.Fetch(ctx, shareID)
	if err != nil {
		return c.failLoad(opImportGist, reasonFetchFailed, ErrImportFailure, err, zap.String("share_id", shareID))
	}

	imported := document.Diagram(identity.ID, shareID)
	if found {
		imported.GistID = existing.GistID
	}
	c.adopt(imported, identity, true)
	c.logger.Info("gist imported", zap.String("share_id", shareID), zap.String("identity", identity.String()))
	return OutcomeLoaded
}
