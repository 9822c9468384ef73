package edi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Additional-Code/edibridge/internal/entity"
)

func TestClassify(t *testing.T) {
	t.Run("explicit reference type wins", func(t *testing.T) {
		p := mustParse(t, `{
			"PurchaseOrderHeader": {
				"PurchaseOrderNumber": "1", "CompanyCode": "ACME",
				"PurchaseOrder": {"ReferencePOType": "PREPACK", "PurchaseOrderDetails": []}
			}
		}`)
		assert.Equal(t, entity.OrderTypePrepack, Classify(p))
	})

	t.Run("bom components imply prepack", func(t *testing.T) {
		p := mustParse(t, `{
			"PurchaseOrderHeader": {
				"PurchaseOrderNumber": "1", "CompanyCode": "ACME",
				"PurchaseOrder": {"PurchaseOrderDetails": [
					{"VendorItemNumber": "A"},
					{"VendorItemNumber": "B", "BOMDetails": [{"GTIN": "123"}]}
				]}
			}
		}`)
		assert.Equal(t, entity.OrderTypePrepack, Classify(p))
	})

	t.Run("no signal means bulk", func(t *testing.T) {
		p := mustParse(t, `{
			"PurchaseOrderHeader": {
				"PurchaseOrderNumber": "1", "CompanyCode": "ACME",
				"PurchaseOrder": {"ReferencePOType": "SA", "PurchaseOrderDetails": [
					{"VendorItemNumber": "A", "BOMDetails": []}
				]}
			}
		}`)
		assert.Equal(t, entity.OrderTypeBulk, Classify(p))
	})

	t.Run("empty details means bulk", func(t *testing.T) {
		p := mustParse(t, `{
			"PurchaseOrderHeader": {
				"PurchaseOrderNumber": "1", "CompanyCode": "ACME",
				"PurchaseOrder": {"PurchaseOrderDetails": []}
			}
		}`)
		assert.Equal(t, entity.OrderTypeBulk, Classify(p))
	})
}
