package edi

import "github.com/Additional-Code/edibridge/internal/entity"

// Classify tags a structurally validated payload as PREPACK or BULK.
// First match wins: an explicit ReferencePOType of PREPACK, then any line
// item carrying BOM components, otherwise BULK. Pure and deterministic.
func Classify(p *Payload) string {
	po := p.PurchaseOrderHeader.PurchaseOrder

	if po.ReferencePOType.String() == entity.OrderTypePrepack {
		return entity.OrderTypePrepack
	}

	for _, item := range po.PurchaseOrderDetails.Items {
		if len(item.BOMDetails) > 0 {
			return entity.OrderTypePrepack
		}
	}

	return entity.OrderTypeBulk
}
