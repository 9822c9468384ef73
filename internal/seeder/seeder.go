package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/database"
	"github.com/Additional-Code/edibridge/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder stages sample EDI transmissions for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the gateway connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Gateway, logger: logger}
}

// Transmissions seeds one assortment-style and one bulk purchase order,
// plus a malformed payload for exercising the failure path.
func (s *Seeder) Transmissions(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.InboundRecord{
		{
			Created:         now.Add(-2 * time.Hour),
			CompanyCode:     "ACME",
			Channel:         "seed",
			TransactionType: "850",
			Status:          "downloaded",
			JSONContent:     []byte(prepackSample),
		},
		{
			Created:         now.Add(-time.Hour),
			CompanyCode:     "ACME",
			Channel:         "seed",
			TransactionType: "850",
			Status:          "downloaded",
			JSONContent:     []byte(bulkSample),
		},
		{
			Created:         now,
			CompanyCode:     "ACME",
			Channel:         "seed",
			TransactionType: "850",
			Status:          "downloaded",
			JSONContent:     []byte(invalidSample),
		},
	}

	for _, sample := range samples {
		record := sample
		if _, err := s.db.NewInsert().Model(&record).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded inbound transmissions", zap.Int("count", len(samples)))
	}
	return nil
}

const prepackSample = `{
  "PurchaseOrderHeader": {
    "PurchaseOrderNumber": "15826580",
    "CompanyCode": "ACME",
    "OrderDate": "20240110",
    "PurchaseOrder": {
      "RequestedShipDate": "20240201",
      "CancelDate": "20240301",
      "DepartmentNumber": "045",
      "ReferencePOType": "PREPACK",
      "PurchaseOrderDetails": [
        {
          "VendorItemNumber": "STYLE-100",
          "Quantity": 100,
          "UnitPrice": 12.5,
          "Pack": 4,
          "PackSize": 6,
          "BOMDetails": [
            {"GTIN": "00012345678905", "ColorDescription": "BLACK", "SizeDescription": "S", "Quantity": 1, "UnitPrice": 12.5},
            {"GTIN": "00012345678912", "ColorDescription": "BLACK", "SizeDescription": "M", "Quantity": 2, "UnitPrice": 12.5},
            {"GTIN": "00012345678929", "ColorDescription": "BLACK", "SizeDescription": "L", "Quantity": 1, "UnitPrice": 12.5}
          ]
        }
      ]
    }
  }
}`

const bulkSample = `{
  "PurchaseOrderHeader": {
    "PurchaseOrderNumber": "15826581",
    "CompanyCode": "ACME",
    "OrderDate": "20240111",
    "PurchaseOrder": {
      "RequestedShipDate": "20240205",
      "CancelDate": "20240305",
      "DepartmentNumber": "045",
      "PurchaseOrderDetails": [
        {"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "M", "Quantity": 48, "UnitPrice": 9.99},
        {"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "L", "Quantity": 36, "UnitPrice": 9.99}
      ]
    }
  }
}`

const invalidSample = `{
  "PurchaseOrderHeader": {
    "PurchaseOrderNumber": "15826582",
    "OrderDate": "20240112"
  }
}`
