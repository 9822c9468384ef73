package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/edibridge/internal/database"
	"github.com/Additional-Code/edibridge/internal/entity"
	"github.com/Additional-Code/edibridge/internal/staging"
	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/edibridge/repository/reporting")

// Repository writes normalized order rows into the reporting schema. Every
// write takes an explicit table set so a full rebuild lands in staging
// without any shared mode state.
type Repository struct {
	db *bun.DB
}

// NewRepository wires a repository backed by the reporting connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Reporting}
}

// InsertHeader persists one order header and populates its ID.
func (r *Repository) InsertHeader(ctx context.Context, ts staging.TableSet, header *entity.OrderHeader) error {
	if header == nil {
		return errors.New("nil order header")
	}
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.InsertHeader", trace.WithAttributes(
		attribute.String("customer_po", header.CustomerPO),
		attribute.String("table_set", ts.String()),
	))
	defer span.End()

	if header.ProcessedDate.IsZero() {
		header.ProcessedDate = time.Now().UTC()
	}

	_, err := r.db.NewInsert().
		Model(header).
		ModelTableExpr("?", bun.Ident(ts.Resolve(staging.TableHeader))).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return errorbank.Persistence("insert order header", errorbank.WithCause(err))
	}
	return nil
}

// InsertDetail persists one detail row and populates its ID.
func (r *Repository) InsertDetail(ctx context.Context, ts staging.TableSet, detail *entity.OrderDetail) error {
	if detail == nil {
		return errors.New("nil order detail")
	}
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.InsertDetail", trace.WithAttributes(
		attribute.String("table_set", ts.String()),
	))
	defer span.End()

	_, err := r.db.NewInsert().
		Model(detail).
		ModelTableExpr("?", bun.Ident(ts.Resolve(staging.TableDetail))).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return errorbank.Persistence("insert order detail", errorbank.WithCause(err))
	}
	return nil
}

// InsertBOMComponent persists one assortment component row.
func (r *Repository) InsertBOMComponent(ctx context.Context, ts staging.TableSet, component *entity.BOMComponent) error {
	if component == nil {
		return errors.New("nil bom component")
	}
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.InsertBOMComponent", trace.WithAttributes(
		attribute.String("table_set", ts.String()),
	))
	defer span.End()

	_, err := r.db.NewInsert().
		Model(component).
		ModelTableExpr("?", bun.Ident(ts.Resolve(staging.TableBOMComponent))).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return errorbank.Persistence("insert bom component", errorbank.WithCause(err))
	}
	return nil
}

// NextVersion returns 1 + the count of headers for the same customer PO
// with a strictly earlier download date. Recomputed at insert time, so a
// rebuild processed in download-date order reproduces identical versions.
func (r *Repository) NextVersion(ctx context.Context, ts staging.TableSet, customerPO string, downloadDate time.Time) (int, error) {
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.NextVersion", trace.WithAttributes(
		attribute.String("customer_po", customerPO),
		attribute.String("table_set", ts.String()),
	))
	defer span.End()

	count, err := r.db.NewSelect().
		Table(ts.Resolve(staging.TableHeader)).
		Where("customer_po = ?", customerPO).
		Where("download_date < ?", downloadDate).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return 0, errorbank.Persistence("resolve version", errorbank.WithCause(err))
	}
	return count + 1, nil
}

// DeleteBySource removes every header produced from the given inbound
// record, along with its details and BOM components. Production tables
// only; rebuilds start from empty staging and never delete.
func (r *Repository) DeleteBySource(ctx context.Context, sourceID int64) error {
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.DeleteBySource", trace.WithAttributes(
		attribute.Int64("source.id", sourceID),
	))
	defer span.End()

	var headerIDs []int64
	err := r.db.NewSelect().
		Model((*entity.OrderHeader)(nil)).
		Column("id").
		Where("source_table_id = ?", sourceID).
		Scan(ctx, &headerIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return errorbank.Persistence("lookup headers for delete", errorbank.WithCause(err))
	}

	for _, headerID := range headerIDs {
		// Children first: BOM components, then details, then the header.
		_, err = r.db.NewDelete().
			Model((*entity.BOMComponent)(nil)).
			Where("detail_id IN (SELECT id FROM edi_report_detail WHERE header_id = ?)", headerID).
			Exec(ctx)
		if err != nil {
			return errorbank.Persistence("delete bom components", errorbank.WithCause(err))
		}

		_, err = r.db.NewDelete().
			Model((*entity.OrderDetail)(nil)).
			Where("header_id = ?", headerID).
			Exec(ctx)
		if err != nil {
			return errorbank.Persistence("delete order details", errorbank.WithCause(err))
		}

		_, err = r.db.NewDelete().
			Model((*entity.OrderHeader)(nil)).
			Where("id = ?", headerID).
			Exec(ctx)
		if err != nil {
			return errorbank.Persistence("delete order header", errorbank.WithCause(err))
		}
	}

	return nil
}

// InsertAuditLog appends one run summary row.
func (r *Repository) InsertAuditLog(ctx context.Context, log *entity.AuditLog) error {
	if log == nil {
		return errors.New("nil audit log")
	}
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.InsertAuditLog", trace.WithAttributes(
		attribute.String("event_type", log.EventType),
	))
	defer span.End()

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NewInsert().Model(log).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return errorbank.Persistence("insert audit log", errorbank.WithCause(err))
	}
	return nil
}

// LatestAuditLogs lists recent run summaries, newest first.
func (r *Repository) LatestAuditLogs(ctx context.Context, limit int) ([]entity.AuditLog, error) {
	ctx, span := repoTracer.Start(ctx, "ReportingRepository.LatestAuditLogs")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	var logs []entity.AuditLog
	err := r.db.NewSelect().
		Model(&logs).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return logs, nil
}
