package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrLoadFailure covers an unreachable remote with a local miss, and malformed records.
	ErrLoadFailure = errors.New("session: load failure")
	// ErrSaveFailure covers a local write error or a remote upsert error.
	ErrSaveFailure = errors.New("session: save failure")
	// ErrImportFailure covers network and parse errors on gist fetch.
	ErrImportFailure = errors.New("session: import failure")
	// ErrNotFound reports an explicitly requested diagram absent from both stores.
	ErrNotFound = errors.New("session: diagram not found")

	errMissingLocalStore  = errors.New("local store is required")
	errMissingRemoteStore = errors.New("remote store is required")
	errMissingController  = errors.New("controller is required")
	errMissingGistFetcher = errors.New("gist fetcher is not configured")
	errMissingTemplateID  = errors.New("template identity has no id")
	errMissingShareID     = errors.New("share id is required")
)

const (
	opControllerNew = "session.controller.new"
	opAutosaverNew  = "session.autosaver.new"
	opLoadLatest    = "session.load_latest"
	opLoadDiagram   = "session.load_diagram"
	opLoadTemplate  = "session.load_template"
	opImportGist    = "session.import_gist"
	opSave          = "session.save"
	opSaveTemplate  = "session.save_template"

	reasonMissingLocalStore  = "missing_local_store"
	reasonMissingRemoteStore = "missing_remote_store"
	reasonMissingController  = "missing_controller"
	reasonMalformedToken     = "malformed_token"
	reasonMalformedRecord    = "malformed_record"
	reasonLocalReadFailed    = "local_read_failed"
	reasonLocalWriteFailed   = "local_write_failed"
	reasonNotFound           = "not_found"
	reasonLookupFailed       = "lookup_failed"
	reasonFetchFailed        = "fetch_failed"
	reasonMissingShareID     = "missing_share_id"
	reasonIDFailed           = "id_generation_failed"
	reasonEncodeFailed       = "encode_failed"
	reasonRemoteUpsertFailed = "remote_upsert_failed"
	reasonSaveSkipped        = "load_in_progress"
)

// ServiceError carries a stable code of the form "<operation>.<reason>".
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// classify tags cause with the taxonomy sentinel so both match errors.Is.
func classify(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

func (c *Controller) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("session error", attrs...)
}
