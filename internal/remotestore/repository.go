package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opRepositoryNew      = "remotestore.repository.new"
	opGetByID            = "remotestore.get_by_id"
	opUpsert             = "remotestore.upsert"
	opListAll            = "remotestore.list_all"
	opGetLatest          = "remotestore.get_latest"
	fieldLocalID         = "local_id"
	columnUpdatedAt      = "updated_at_ms"
	orderUpdatedDesc     = columnUpdatedAt + " DESC, " + fieldLocalID + " ASC"
	queryLocalID         = fieldLocalID + " = ?"
	reasonMissingDB      = "missing_database"
	reasonInvalidLocalID = "invalid_local_id"
	reasonInvalidContent = "invalid_content"
	reasonInvalidLimit   = "invalid_limit"
	reasonQueryFailed    = "query_failed"
	reasonUpsertFailed   = "upsert_failed"
)

var noOpLogger = zap.NewNop()

// RepositoryConfig describes the dependencies of the gorm-backed remote store.
type RepositoryConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Repository is the store of record for mirrored diagrams.
type Repository struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewRepository validates the configuration and constructs a Repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opRepositoryNew, reasonMissingDB, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Repository{db: cfg.Database, clock: clock, logger: logger}, nil
}

// GetByID returns the mirror row for the client identifier.
func (r *Repository) GetByID(ctx context.Context, localID string) (diagrams.RemoteRecord, bool, error) {
	if r.db == nil {
		return diagrams.RemoteRecord{}, false, newServiceError(opGetByID, reasonMissingDB, errMissingDatabase)
	}
	normalized, err := normalizeLocalID(localID)
	if err != nil {
		return diagrams.RemoteRecord{}, false, newServiceError(opGetByID, reasonInvalidLocalID, err)
	}

	var row DiagramRow
	err = r.db.WithContext(ctx).Where(queryLocalID, normalized).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return diagrams.RemoteRecord{}, false, nil
	}
	if err != nil {
		r.logError(opGetByID, reasonQueryFailed, err, zap.String(fieldLocalID, normalized))
		return diagrams.RemoteRecord{}, false, newServiceError(opGetByID, reasonQueryFailed, err)
	}
	return row.record(), true, nil
}

// Upsert inserts or replaces the mirror row keyed by local_id.
// Re-sending an identical record leaves the table unchanged.
func (r *Repository) Upsert(ctx context.Context, record diagrams.RemoteRecord) error {
	if r.db == nil {
		return newServiceError(opUpsert, reasonMissingDB, errMissingDatabase)
	}
	normalized, err := normalizeLocalID(record.LocalID)
	if err != nil {
		return newServiceError(opUpsert, reasonInvalidLocalID, err)
	}
	record.LocalID = normalized
	if err := validateContent(record.Content); err != nil {
		return newServiceError(opUpsert, reasonInvalidContent, err)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = r.clock().UTC()
	}

	row := rowFromRecord(record)
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: fieldLocalID}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "content", columnUpdatedAt}),
	}).Create(&row).Error
	if err != nil {
		r.logError(opUpsert, reasonUpsertFailed, err, zap.String(fieldLocalID, normalized))
		return newServiceError(opUpsert, reasonUpsertFailed, err)
	}
	return nil
}

// ListAllOrderedByUpdatedDesc returns every mirror row, most recently updated first.
func (r *Repository) ListAllOrderedByUpdatedDesc(ctx context.Context) ([]diagrams.RemoteRecord, error) {
	return r.list(ctx, opListAll, 0)
}

// GetLatest returns up to limit rows, most recently updated first.
func (r *Repository) GetLatest(ctx context.Context, limit int) ([]diagrams.RemoteRecord, error) {
	if limit <= 0 {
		return nil, newServiceError(opGetLatest, reasonInvalidLimit, fmt.Errorf("%w: %d", ErrInvalidLimit, limit))
	}
	return r.list(ctx, opGetLatest, limit)
}

func (r *Repository) list(ctx context.Context, operation string, limit int) ([]diagrams.RemoteRecord, error) {
	if r.db == nil {
		return nil, newServiceError(operation, reasonMissingDB, errMissingDatabase)
	}
	query := r.db.WithContext(ctx).Order(orderUpdatedDesc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []DiagramRow
	if err := query.Find(&rows).Error; err != nil {
		r.logError(operation, reasonQueryFailed, err)
		return nil, newServiceError(operation, reasonQueryFailed, err)
	}
	records := make([]diagrams.RemoteRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (r *Repository) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger := r.logger
	if logger == nil {
		logger = noOpLogger
	}
	logger.Error("remote store error", attrs...)
}

func normalizeLocalID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLocalID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidLocalID, maxIdentifierLength)
	}
	return trimmed, nil
}

func validateContent(content json.RawMessage) error {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidContent)
	}
	return nil
}
