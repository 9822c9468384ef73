package edi

import (
	"fmt"

	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

const (
	maxPONumberLength = 50
	maxLineItems      = 10_000
)

// Validate asserts the minimum shape a payload must have before any
// transform runs. On success the payload is safe to destructure downstream
// without further existence checks on these fields.
func Validate(p *Payload) error {
	if p == nil || p.PurchaseOrderHeader == nil {
		return errorbank.Validation("missing required field: PurchaseOrderHeader")
	}

	hdr := p.PurchaseOrderHeader
	if hdr.PurchaseOrderNumber == nil {
		return errorbank.Validation("missing required field: PurchaseOrderHeader.PurchaseOrderNumber")
	}
	if hdr.CompanyCode == nil {
		return errorbank.Validation("missing required field: PurchaseOrderHeader.CompanyCode")
	}
	if hdr.PurchaseOrder == nil {
		return errorbank.Validation("missing required field: PurchaseOrderHeader.PurchaseOrder")
	}

	if n := len(*hdr.PurchaseOrderNumber); n > maxPONumberLength {
		return errorbank.Validation(fmt.Sprintf("PurchaseOrderNumber exceeds maximum length: %d", n))
	}

	items := hdr.PurchaseOrder.PurchaseOrderDetails
	if !items.present {
		return errorbank.Validation("missing required field: PurchaseOrder.PurchaseOrderDetails")
	}
	if !items.isArray {
		return errorbank.Validation("PurchaseOrderDetails must be an array")
	}
	if len(items.Items) > maxLineItems {
		return errorbank.Validation(fmt.Sprintf("excessive line items: %d", len(items.Items)))
	}

	return nil
}
