package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/cache"
	"github.com/Additional-Code/edibridge/internal/config"
	"github.com/Additional-Code/edibridge/internal/edi"
	"github.com/Additional-Code/edibridge/internal/entity"
	"github.com/Additional-Code/edibridge/internal/messaging"
	"github.com/Additional-Code/edibridge/internal/observability"
	"github.com/Additional-Code/edibridge/internal/repository/gateway"
	"github.com/Additional-Code/edibridge/internal/repository/reporting"
	"github.com/Additional-Code/edibridge/internal/staging"
	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/edibridge/service/etl")

// Mode selects how a run treats the reporting dataset.
type Mode string

const (
	// ModeIncremental processes new and failed records straight into
	// production, overwriting prior output per record.
	ModeIncremental Mode = "incremental"
	// ModeRebuild reprocesses everything into staging tables and promotes
	// them over production only when every record succeeds.
	ModeRebuild Mode = "rebuild"
)

// Summary reports one run's outcome. Counts are always populated, even when
// the run returns an error.
type Summary struct {
	Mode       Mode      `json:"mode"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunCompletedEvent is published to the event topic after every run.
type RunCompletedEvent struct {
	Mode       Mode      `json:"mode"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finished_at"`
}

// ErrRunInFlight rejects overlapping runs within one process. Record
// processing is strictly sequential; versions depend on earlier inserts
// being visible.
var ErrRunInFlight = errorbank.Conflict("an ETL run is already in flight")

const lastRunCacheKey = "etl:last_run"

// GatewaySource is the inbound side of the ETL.
type GatewaySource interface {
	FetchPending(ctx context.Context, opts gateway.FetchOptions) ([]entity.InboundRecord, error)
	MarkStatus(ctx context.Context, id int64, status, errorMessage string) error
	MarkAllProcessed(ctx context.Context, transactionType string, acceptedStatuses []string) error
	ResetFailed(ctx context.Context) (int64, error)
}

// ReportingSink is the write side of the ETL.
type ReportingSink interface {
	InsertHeader(ctx context.Context, ts staging.TableSet, header *entity.OrderHeader) error
	InsertDetail(ctx context.Context, ts staging.TableSet, detail *entity.OrderDetail) error
	InsertBOMComponent(ctx context.Context, ts staging.TableSet, component *entity.BOMComponent) error
	NextVersion(ctx context.Context, ts staging.TableSet, customerPO string, downloadDate time.Time) (int, error)
	DeleteBySource(ctx context.Context, sourceID int64) error
	InsertAuditLog(ctx context.Context, log *entity.AuditLog) error
	LatestAuditLogs(ctx context.Context, limit int) ([]entity.AuditLog, error)
}

// Stager owns the staging table lifecycle for rebuilds.
type Stager interface {
	Initialize(ctx context.Context) error
	Promote(ctx context.Context) error
}

// Service drives the per-record loop: fetch pending transmissions, run
// validate, classify, flatten, persist, and finalize the run with audit
// records and, for rebuilds, the staging promotion decision.
type Service struct {
	source    GatewaySource
	sink      ReportingSink
	stager    Stager
	flattener *edi.Flattener
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	metrics   *observability.PipelineMetrics
	etlCfg    config.ETL
	msgCfg    config.Messaging
	running   atomic.Bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Gateway   *gateway.Repository
	Reporting *reporting.Repository
	Stager    *staging.Coordinator
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
	Metrics   *observability.PipelineMetrics `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	norm := edi.NewNormalizer(p.Logger)
	return &Service{
		source:    p.Gateway,
		sink:      p.Reporting,
		stager:    p.Stager,
		flattener: edi.NewFlattener(norm),
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		metrics:   p.Metrics,
		etlCfg:    p.Config.ETL,
		msgCfg:    p.Config.Messaging,
	}
}

// Process executes one ETL run. The returned Summary always carries counts;
// the error reports run-level failure (fetch error, rebuild abort, or
// promotion failure). Per-record failures never abort the batch.
func (s *Service) Process(ctx context.Context, mode Mode) (Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInFlight
	}
	defer s.running.Store(false)

	ctx, span := serviceTracer.Start(ctx, "ETLService.Process", trace.WithAttributes(
		attribute.String("etl.mode", string(mode)),
	))
	defer span.End()

	summary := Summary{Mode: mode, StartedAt: time.Now().UTC()}
	rebuild := mode == ModeRebuild

	tableSet := staging.Production
	if rebuild {
		s.logger.Warn("reprocess-all initiated; rebuilding dataset via staging tables")
		if err := s.stager.Initialize(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "staging init failed")
			return summary, err
		}
		tableSet = staging.Staging
	}

	records, err := s.source.FetchPending(ctx, gateway.FetchOptions{
		TransactionType:  s.etlCfg.TransactionType,
		AcceptedStatuses: s.etlCfg.AcceptedStatuses,
		PendingOnly:      !rebuild,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return summary, errorbank.Persistence("fetch inbound records", errorbank.WithCause(err))
	}

	s.logger.Info("retrieved records for processing", zap.Int("count", len(records)), zap.String("mode", string(mode)))
	summary.Processed = len(records)

	var errorSummary []string
	for _, record := range records {
		if err := s.processRecord(ctx, record, tableSet, rebuild); err != nil {
			msg := errorbank.Sanitize(err)
			if !rebuild {
				if markErr := s.source.MarkStatus(ctx, record.ID, entity.ReportingStatusFailed, msg); markErr != nil {
					s.logger.Warn("failed to mark record status", zap.Int64("id", record.ID), zap.Error(markErr))
				}
			}
			summary.Failed++
			errorSummary = append(errorSummary, fmt.Sprintf("id=%d: %s", record.ID, msg))
			s.logger.Error("record processing failed", zap.Int64("id", record.ID), zap.Error(err))
			continue
		}

		if !rebuild {
			if markErr := s.source.MarkStatus(ctx, record.ID, entity.ReportingStatusSuccess, ""); markErr != nil {
				s.logger.Warn("failed to mark record status", zap.Int64("id", record.ID), zap.Error(markErr))
			}
		}
		summary.Succeeded++
	}

	runErr := s.finalizeRebuild(ctx, rebuild, &summary, &errorSummary)

	s.writeAudit(ctx, rebuild, summary, errorSummary)

	summary.Errors = capped(errorSummary, s.etlCfg.LogErrorLimit)
	summary.FinishedAt = time.Now().UTC()

	s.metrics.ObserveRun(ctx, string(mode), summary.Succeeded, summary.Failed,
		summary.FinishedAt.Sub(summary.StartedAt), runErr != nil)
	s.storeLastRun(ctx, summary)
	s.publishRunCompleted(ctx, summary)

	s.logger.Info("etl run complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.String("mode", string(mode)),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run failed")
	}
	return summary, runErr
}

// ReprocessFailed clears previously failed records and runs an incremental
// pass over them.
func (s *Service) ReprocessFailed(ctx context.Context) (Summary, error) {
	reset, err := s.source.ResetFailed(ctx)
	if err != nil {
		return Summary{}, errorbank.Persistence("reset failed records", errorbank.WithCause(err))
	}
	s.logger.Info("reset failed records for reprocessing", zap.Int64("count", reset))
	return s.Process(ctx, ModeIncremental)
}

// AuditHistory lists recent run summaries from the audit table.
func (s *Service) AuditHistory(ctx context.Context, limit int) ([]entity.AuditLog, error) {
	return s.sink.LatestAuditLogs(ctx, limit)
}

// LastRun returns the most recent run summary from cache, if one exists.
func (s *Service) LastRun(ctx context.Context) (Summary, bool) {
	if s.cache == nil {
		return Summary{}, false
	}
	raw, err := s.cache.Get(ctx, lastRunCacheKey)
	if err != nil {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

func (s *Service) processRecord(ctx context.Context, record entity.InboundRecord, tableSet staging.TableSet, rebuild bool) error {
	ctx, span := serviceTracer.Start(ctx, "ETLService.processRecord", trace.WithAttributes(
		attribute.Int64("record.id", record.ID),
	))
	defer span.End()

	// Incremental rerun of a previously successful record: replace its
	// prior output. Rebuilds start from empty staging and never delete.
	if !rebuild && record.ReportingProcessStatus == entity.ReportingStatusSuccess {
		if err := s.sink.DeleteBySource(ctx, record.ID); err != nil {
			return err
		}
	}

	payload, err := edi.Parse(record.JSONContent)
	if err != nil {
		return err
	}
	if err := edi.Validate(payload); err != nil {
		return err
	}

	customerPO := payload.PurchaseOrderHeader.PurchaseOrderNumber.String()
	version, err := s.sink.NextVersion(ctx, tableSet, customerPO, record.Created)
	if err != nil {
		return err
	}

	orderType := edi.Classify(payload)
	flat := s.flattener.Flatten(payload, orderType, record.Created, record.ID, version)

	if err := s.persist(ctx, tableSet, flat); err != nil {
		return err
	}

	s.logger.Info("processed purchase order",
		zap.String("customer_po", customerPO),
		zap.Int("version", version),
		zap.String("po_type", orderType),
		zap.Int64("id", record.ID),
	)
	return nil
}

func (s *Service) persist(ctx context.Context, tableSet staging.TableSet, flat *edi.FlatOrder) error {
	if err := s.sink.InsertHeader(ctx, tableSet, &flat.Header); err != nil {
		return err
	}
	for i := range flat.Details {
		d := &flat.Details[i]
		d.Detail.HeaderID = flat.Header.ID
		if err := s.sink.InsertDetail(ctx, tableSet, &d.Detail); err != nil {
			return err
		}
		for j := range d.Components {
			d.Components[j].DetailID = d.Detail.ID
			if err := s.sink.InsertBOMComponent(ctx, tableSet, &d.Components[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// finalizeRebuild applies the promote-or-retain rule: promotion only on a
// clean run, staging retained for inspection otherwise.
func (s *Service) finalizeRebuild(ctx context.Context, rebuild bool, summary *Summary, errorSummary *[]string) error {
	if !rebuild {
		return nil
	}

	if summary.Failed > 0 {
		s.logger.Error("reprocess-all aborting swap; staging tables retained for inspection",
			zap.Int("failures", summary.Failed),
		)
		return errorbank.Internal(fmt.Sprintf("reprocess-all aborted due to %d failures; production data unchanged", summary.Failed))
	}

	if err := s.stager.Promote(ctx); err != nil {
		*errorSummary = append(*errorSummary, errorbank.Sanitize(err))
		s.logger.Error("staging promotion failed; production data unchanged", zap.Error(err))
		return err
	}

	if err := s.source.MarkAllProcessed(ctx, s.etlCfg.TransactionType, s.etlCfg.AcceptedStatuses); err != nil {
		s.logger.Warn("failed to mark records processed after promotion", zap.Error(err))
	}

	s.logger.Info("staging tables promoted to production")
	return nil
}

func (s *Service) writeAudit(ctx context.Context, rebuild bool, summary Summary, errorSummary []string) {
	eventType := entity.AuditEventNormalRun
	if rebuild {
		eventType = entity.AuditEventReprocessAll
	}

	// Operational log line mirrors the audit row.
	s.logger.Info("etl audit",
		zap.String("event_type", eventType),
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Strings("errors", capped(errorSummary, s.etlCfg.LogErrorLimit)),
	)

	audit := &entity.AuditLog{
		EventType:        eventType,
		RecordsProcessed: summary.Processed,
		RecordsSucceeded: summary.Succeeded,
		RecordsFailed:    summary.Failed,
		ErrorSummary:     strings.Join(capped(errorSummary, s.etlCfg.AuditErrorLimit), "; "),
		InitiatedBy:      s.etlCfg.InitiatedBy,
	}
	if err := s.sink.InsertAuditLog(ctx, audit); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
}

func (s *Service) storeLastRun(ctx context.Context, summary Summary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, lastRunCacheKey, raw, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache run summary", zap.Error(err))
	}
}

func (s *Service) publishRunCompleted(ctx context.Context, summary Summary) {
	if !s.msgCfg.Enabled || s.publisher == nil {
		return
	}
	event := RunCompletedEvent{
		Mode:       summary.Mode,
		Processed:  summary.Processed,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		FinishedAt: summary.FinishedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal run completed event", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("run-%d", summary.FinishedAt.UnixNano()))
	if err := s.publisher.Publish(ctx, s.msgCfg.Kafka.EventTopic, key, payload); err != nil {
		s.logger.Error("publish run completed event", zap.Error(err))
	}
}

func capped(items []string, limit int) []string {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
