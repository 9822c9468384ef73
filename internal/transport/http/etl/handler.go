package etl

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/edibridge/internal/dto"
	"github.com/Additional-Code/edibridge/internal/entity"
	"github.com/Additional-Code/edibridge/internal/presentation/http/response"
	service "github.com/Additional-Code/edibridge/internal/service/etl"
	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/edibridge/transport/http/etl")

// Handler exposes ETL run control and audit history over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an ETL Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/etl")
	g.POST("/runs", h.run)
	g.GET("/runs/last", h.lastRun)
	g.GET("/audit", h.audit)
}

func (h *Handler) run(c echo.Context) error {
	b := response.New(c)

	var payload dto.RunRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.ReprocessAll && payload.ReprocessFailed {
		return b.WithError(errorbank.BadRequest("reprocess_all and reprocess_failed are mutually exclusive")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "etl.run", trace.WithAttributes(
		attribute.Bool("reprocess_all", payload.ReprocessAll),
		attribute.Bool("reprocess_failed", payload.ReprocessFailed),
	))
	defer span.End()

	var (
		summary service.Summary
		err     error
	)
	switch {
	case payload.ReprocessAll:
		summary, err = h.svc.Process(ctx, service.ModeRebuild)
	case payload.ReprocessFailed:
		summary, err = h.svc.ReprocessFailed(ctx)
	default:
		summary, err = h.svc.Process(ctx, service.ModeIncremental)
	}
	if err != nil {
		// A partially failed run still carries counts worth returning.
		return b.WithMeta("summary", toRunDTO(summary)).WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toRunDTO(summary)).Build()
}

func (h *Handler) lastRun(c echo.Context) error {
	b := response.New(c)

	summary, ok := h.svc.LastRun(c.Request().Context())
	if !ok {
		return b.WithError(errorbank.NotFound("no completed run recorded")).Build()
	}

	return b.WithData(toRunDTO(summary)).Build()
}

func (h *Handler) audit(c echo.Context) error {
	b := response.New(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return b.WithError(errorbank.BadRequest("invalid limit")).Build()
		}
		limit = parsed
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "etl.audit")
	defer span.End()

	logs, err := h.svc.AuditHistory(ctx, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toAuditDTO(l))
	}
	return b.WithData(out).Build()
}

func toRunDTO(s service.Summary) dto.RunResponse {
	return dto.RunResponse{
		Mode:       string(s.Mode),
		Processed:  s.Processed,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Errors:     s.Errors,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

func toAuditDTO(l entity.AuditLog) dto.AuditLogResponse {
	return dto.AuditLogResponse{
		ID:               l.ID,
		EventType:        l.EventType,
		RecordsProcessed: l.RecordsProcessed,
		RecordsSucceeded: l.RecordsSucceeded,
		RecordsFailed:    l.RecordsFailed,
		ErrorSummary:     l.ErrorSummary,
		InitiatedBy:      l.InitiatedBy,
		CreatedAt:        l.CreatedAt,
	}
}
