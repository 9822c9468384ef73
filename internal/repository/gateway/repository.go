package gateway

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
)

var repoTracer = otel.Tracer("github.com/Additional-Code/edibridge/repository/gateway")

// FetchOptions filters the inbound selection.
type FetchOptions struct {
	TransactionType  string
	AcceptedStatuses []string
	// PendingOnly restricts to records never processed or previously failed.
	// A full rebuild fetches everything regardless of reporting status.
	PendingOnly bool
}

// Repository reads and stamps inbound transmissions in the gateway store.
type Repository struct {
	db *bun.DB
}

// NewRepository wires a repository backed by the gateway connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Gateway}
}

// FetchPending selects accepted transmissions ordered by creation timestamp
// ascending. The ordering is load-bearing: version numbers are a
// chronological ranking over download dates.
func (r *Repository) FetchPending(ctx context.Context, opts FetchOptions) ([]entity.InboundRecord, error) {
	ctx, span := repoTracer.Start(ctx, "GatewayRepository.FetchPending", trace.WithAttributes(
		attribute.String("transaction_type", opts.TransactionType),
		attribute.Bool("pending_only", opts.PendingOnly),
	))
	defer span.End()

	var records []entity.InboundRecord
	q := r.db.NewSelect().
		Model(&records).
		Where("transaction_type = ?", opts.TransactionType).
		Where("status IN (?)", bun.In(opts.AcceptedStatuses)).
		Order("created ASC")

	if opts.PendingOnly {
		q = q.Where("(reporting_process_status IS NULL OR reporting_process_status = ?)", entity.ReportingStatusFailed)
	}

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return records, nil
}

// Insert stores a new inbound transmission. Used by the kafka intake worker
// and dev seeding; the ETL itself never creates records.
func (r *Repository) Insert(ctx context.Context, record *entity.InboundRecord) error {
	if record == nil {
		return errors.New("nil inbound record")
	}
	ctx, span := repoTracer.Start(ctx, "GatewayRepository.Insert")
	defer span.End()

	_, err := r.db.NewInsert().Model(record).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// MarkStatus stamps the reporting outcome onto one record.
func (r *Repository) MarkStatus(ctx context.Context, id int64, status, errorMessage string) error {
	ctx, span := repoTracer.Start(ctx, "GatewayRepository.MarkStatus", trace.WithAttributes(
		attribute.Int64("record.id", id),
		attribute.String("status", status),
	))
	defer span.End()

	now := time.Now().UTC()
	_, err := r.db.NewUpdate().
		Model((*entity.InboundRecord)(nil)).
		Set("reporting_processed = ?", now).
		Set("reporting_process_status = ?", status).
		Set("reporting_process_error = ?", nullableText(errorMessage)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// MarkAllProcessed stamps every accepted transmission of the given type as
// Success. Called only after a rebuild has been promoted.
func (r *Repository) MarkAllProcessed(ctx context.Context, transactionType string, acceptedStatuses []string) error {
	ctx, span := repoTracer.Start(ctx, "GatewayRepository.MarkAllProcessed")
	defer span.End()

	now := time.Now().UTC()
	_, err := r.db.NewUpdate().
		Model((*entity.InboundRecord)(nil)).
		Set("reporting_processed = ?", now).
		Set("reporting_process_status = ?", entity.ReportingStatusSuccess).
		Set("reporting_process_error = NULL").
		Where("transaction_type = ?", transactionType).
		Where("status IN (?)", bun.In(acceptedStatuses)).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// ResetFailed clears the reporting columns on previously failed records so
// an incremental pass picks them up again. Returns the affected count.
func (r *Repository) ResetFailed(ctx context.Context) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "GatewayRepository.ResetFailed")
	defer span.End()

	res, err := r.db.NewUpdate().
		Model((*entity.InboundRecord)(nil)).
		Set("reporting_process_status = NULL").
		Set("reporting_process_error = NULL").
		Set("reporting_processed = NULL").
		Where("reporting_process_status = ?", entity.ReportingStatusFailed).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
