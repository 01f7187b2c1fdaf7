package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/remotestore"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const localIDParam = "localID"

var errMissingRepository = errors.New("diagram repository dependency required")

// DiagramRepository is the store of record served over HTTP.
type DiagramRepository interface {
	GetByID(ctx context.Context, localID string) (diagrams.RemoteRecord, bool, error)
	Upsert(ctx context.Context, record diagrams.RemoteRecord) error
	ListAllOrderedByUpdatedDesc(ctx context.Context) ([]diagrams.RemoteRecord, error)
	GetLatest(ctx context.Context, limit int) ([]diagrams.RemoteRecord, error)
}

type Dependencies struct {
	Repository DiagramRepository
	Logger     *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Repository == nil {
		return nil, errMissingRepository
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	// Local ids may carry escaped slashes.
	router.UseRawPath = true
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		repository: deps.Repository,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/diagrams", handler.handleListDiagrams)
	router.GET("/diagrams/:"+localIDParam, handler.handleGetDiagram)
	router.PUT("/diagrams/:"+localIDParam, handler.handleUpsertDiagram)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Accept", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	repository DiagramRepository
	logger     *zap.Logger
}

type listResponsePayload struct {
	Diagrams []diagrams.RemoteRecord `json:"diagrams"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleListDiagrams(c *gin.Context) {
	var (
		records []diagrams.RemoteRecord
		err     error
	)
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		limit, parseErr := strconv.Atoi(rawLimit)
		if parseErr != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		records, err = h.repository.GetLatest(c.Request.Context(), limit)
	} else {
		records, err = h.repository.ListAllOrderedByUpdatedDesc(c.Request.Context())
	}
	if err != nil {
		h.respondRepositoryError(c, "list_failed", err)
		return
	}
	if records == nil {
		records = []diagrams.RemoteRecord{}
	}
	c.JSON(http.StatusOK, listResponsePayload{Diagrams: records})
}

func (h *httpHandler) handleGetDiagram(c *gin.Context) {
	localID := c.Param(localIDParam)
	record, found, err := h.repository.GetByID(c.Request.Context(), localID)
	if err != nil {
		h.respondRepositoryError(c, "lookup_failed", err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleUpsertDiagram(c *gin.Context) {
	localID := c.Param(localIDParam)

	var record diagrams.RemoteRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if record.LocalID == "" {
		record.LocalID = localID
	}
	if record.LocalID != localID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "local_id_mismatch"})
		return
	}

	if err := h.repository.Upsert(c.Request.Context(), record); err != nil {
		h.respondRepositoryError(c, "upsert_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) respondRepositoryError(c *gin.Context, reason string, err error) {
	code := remotestore.ErrorCode(err)
	switch {
	case errors.Is(err, remotestore.ErrInvalidLocalID):
		c.JSON(http.StatusBadRequest, errorPayload("invalid_local_id", code))
	case errors.Is(err, remotestore.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, errorPayload("invalid_content", code))
	case errors.Is(err, remotestore.ErrInvalidLimit):
		c.JSON(http.StatusBadRequest, errorPayload("invalid_limit", code))
	default:
		h.logger.Error("diagram repository failure", zap.String("reason", reason), zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorPayload(reason, code))
	}
}

func errorPayload(reason, code string) gin.H {
	payload := gin.H{"error": reason}
	if code != "" {
		payload["code"] = code
	}
	return payload
}
