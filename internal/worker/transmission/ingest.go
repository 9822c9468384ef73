package transmission

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/config"
	"github.com/Additional-Code/edibridge/internal/entity"
	"github.com/Additional-Code/edibridge/internal/messaging"
	"github.com/Additional-Code/edibridge/internal/repository/gateway"
	"github.com/Additional-Code/edibridge/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/edibridge/worker/transmission")

// Module registers the transmission intake handler.
var Module = fx.Module("worker_transmission",
	fx.Provide(
		fx.Annotate(
			NewIngestHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// envelope is the wire shape on the transmission topic. Content carries the
// raw purchase order JSON untouched; the ETL parses it later.
type envelope struct {
	CompanyCode     string          `json:"company_code"`
	Channel         string          `json:"channel"`
	TransactionType string          `json:"transaction_type"`
	Status          string          `json:"status"`
	Content         json.RawMessage `json:"content"`
}

// NewIngestHandler stages inbound EDI transmissions from the bus into the
// gateway table. Decode failures are dropped after logging; redelivering a
// malformed envelope can never succeed.
func NewIngestHandler(repo *gateway.Repository, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.transmission.ingest", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var env envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			logger.Error("failed to decode transmission envelope",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")

			return nil
		}

		if len(env.Content) == 0 {
			logger.Warn("transmission envelope has no content; dropping", zap.Int64("offset", msg.Offset))

			return nil
		}

		record := &entity.InboundRecord{
			CompanyCode:     env.CompanyCode,
			Channel:         env.Channel,
			TransactionType: env.TransactionType,
			Status:          env.Status,
			JSONContent:     env.Content,
		}
		if record.TransactionType == "" {
			record.TransactionType = cfg.ETL.TransactionType
		}
		if record.Status == "" {
			record.Status = "downloaded"
		}
		if record.Channel == "" {
			record.Channel = msg.Topic
		}

		if err := repo.Insert(ctx, record); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert failed")

			return err
		}

		logger.Info("staged inbound transmission",
			zap.Int64("id", record.ID),
			zap.String("company_code", record.CompanyCode),
			zap.String("transaction_type", record.TransactionType),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.TransmissionTopic,
		Handler: handler,
	}
}
