package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/invopop/jsonschema"

	"triagehq.app/triage/internal/http/dto"
	"triagehq.app/triage/internal/model"
	"triagehq.app/triage/internal/service"
	"triagehq.app/triage/internal/store"
)

type QueryHandler struct {
	ingest     service.IngestService
	routing    service.RoutingService
	status     service.StatusService
	escalation service.EscalationService
	queries    store.QueryStore
}

func NewQueryHandler(ingest service.IngestService, routing service.RoutingService, status service.StatusService, escalation service.EscalationService, queries store.QueryStore) *QueryHandler {
	return &QueryHandler{
		ingest:     ingest,
		routing:    routing,
		status:     status,
		escalation: escalation,
		queries:    queries,
	}
}

func (h *QueryHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid create query request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.ingest.CreateAndEnqueue(ctx, service.IngestParams{
		Channel:     model.Channel(req.Channel),
		Subject:     req.Subject,
		Content:     req.Content,
		SenderName:  req.SenderName,
		SenderEmail: req.SenderEmail,
		SenderID:    req.SenderID,
		Metadata:    req.Metadata,
		ReceivedAt:  req.ReceivedAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyContent) || errors.Is(err, service.ErrInvalidChannel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest query", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest query"})
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateQueryResponse{
		QueryID:  result.Query.ID,
		Enqueued: result.Enqueued,
	})
}

func (h *QueryHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	queryID, ok := h.queryID(c)
	if !ok {
		return
	}

	query, err := h.queries.GetByID(ctx, queryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "query not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to fetch query", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch query"})
		return
	}

	c.JSON(http.StatusOK, query)
}

func (h *QueryHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	queryID, ok := h.queryID(c)
	if !ok {
		return
	}

	entries, err := h.queries.ListHistory(ctx, queryID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *QueryHandler) AutoAssign(c *gin.Context) {
	ctx := c.Request.Context()

	queryID, ok := h.queryID(c)
	if !ok {
		return
	}

	var actor *string
	if v := c.Query("actor"); v != "" {
		actor = &v
	}

	result, err := h.routing.AutoRouteAndAssign(ctx, queryID, actor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "query not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to route query", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to route query"})
		return
	}

	c.JSON(http.StatusOK, dto.AssignResponse{
		TeamID:   result.TeamID,
		AgentID:  result.AgentID,
		Assigned: result.Assigned(),
	})
}

func (h *QueryHandler) ManualAssign(c *gin.Context) {
	ctx := c.Request.Context()

	queryID, ok := h.queryID(c)
	if !ok {
		return
	}

	var req dto.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.routing.ManualAssign(ctx, queryID, req.TeamID, req.AgentID, req.Actor)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "query, team, or agent not found"})
		case errors.Is(err, service.ErrAgentNotInTeam):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to assign query", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign query"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.AssignResponse{
		TeamID:   &req.TeamID,
		AgentID:  &req.AgentID,
		Assigned: true,
	})
}

func (h *QueryHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()

	queryID, ok := h.queryID(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := model.Status(req.Status)
	if status == model.StatusEscalated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "escalated is set by the escalation sweep"})
		return
	}

	err := h.status.Update(ctx, queryID, status, req.Actor, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "query not found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to update status", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *QueryHandler) Sweep(c *gin.Context) {
	ctx := c.Request.Context()

	escalated, err := h.escalation.RunSweep(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "escalation sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "escalation sweep failed"})
		return
	}

	c.JSON(http.StatusOK, dto.SweepResponse{EscalatedQueryIDs: escalated})
}

// ingestSchema is reflected once at startup; the payload shape is static.
var ingestSchema = func() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(dto.CreateQueryRequest{})
}()

// Schema describes the ingest payload so producers can validate before
// posting.
func (h *QueryHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, ingestSchema)
}

func (h *QueryHandler) queryID(c *gin.Context) (int64, bool) {
	queryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query id"})
		return 0, false
	}
	return queryID, true
}
