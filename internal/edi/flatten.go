package edi

import (
	"time"

	"github.com/Additional-Code/edibridge/internal/entity"
)

// FlatOrder is the in-memory record set produced from one transmission:
// one header, N detail rows, and (PREPACK only) BOM components per detail.
type FlatOrder struct {
	Header  entity.OrderHeader
	Details []FlatDetail
}

// FlatDetail pairs a detail row with its BOM components.
type FlatDetail struct {
	Detail     entity.OrderDetail
	Components []entity.BOMComponent
}

// Flattener walks validated payloads and produces normalized rows.
type Flattener struct {
	norm *Normalizer
}

// NewFlattener builds a Flattener around the given Normalizer.
func NewFlattener(norm *Normalizer) *Flattener {
	return &Flattener{norm: norm}
}

// Flatten produces the record set for a validated, classified payload.
// downloadDate, sourceID, and version are caller-supplied; the payload must
// have passed Validate.
func (f *Flattener) Flatten(p *Payload, orderType string, downloadDate time.Time, sourceID int64, version int) *FlatOrder {
	out := &FlatOrder{
		Header: f.header(p, orderType, downloadDate, sourceID, version),
	}

	items := p.PurchaseOrderHeader.PurchaseOrder.PurchaseOrderDetails.Items
	for _, item := range items {
		if orderType == entity.OrderTypePrepack {
			out.Details = append(out.Details, f.prepackDetail(item))
		} else {
			out.Details = append(out.Details, f.bulkDetail(item))
		}
	}

	return out
}

func (f *Flattener) header(p *Payload, orderType string, downloadDate time.Time, sourceID int64, version int) entity.OrderHeader {
	hdr := p.PurchaseOrderHeader
	po := hdr.PurchaseOrder

	return entity.OrderHeader{
		CustomerPO:    hdr.PurchaseOrderNumber.String(),
		Company:       hdr.CompanyCode.String(),
		OrderDate:     f.norm.ParseDate(hdr.OrderDate),
		StartDate:     f.norm.ParseDate(po.RequestedShipDate),
		CompleteDate:  f.norm.ParseDate(po.CancelDate),
		Department:    po.DepartmentNumber.String(),
		DownloadDate:  downloadDate,
		POType:        orderType,
		Version:       version,
		SourceTableID: sourceID,
	}
}

// prepackDetail flattens one PREPACK line item. The detail color comes from
// the first BOM component; all components of a line item are assumed to
// share one color. Line-level size is always absent.
func (f *Flattener) prepackDetail(item LineItem) FlatDetail {
	var color string
	if len(item.BOMDetails) > 0 {
		color = item.BOMDetails[0].ColorDescription.String()
	}

	innerPack := f.norm.BoundedInt(orMissing(item.Pack, 1), 0)
	qtyPerInnerPack := f.norm.BoundedInt(orMissing(item.PackSize, 1), 0)

	detail := entity.OrderDetail{
		Style:           item.VendorItemNumber.String(),
		Color:           color,
		Qty:             f.norm.BoundedInt(item.Quantity, 0),
		UPC:             item.GTIN.String(),
		SKU:             item.BuyerPartNumber.String(),
		UOM:             item.UOMTypeCode.String(),
		UnitPrice:       f.norm.BoundedFloat(item.UnitPrice, 0),
		InnerPack:       &innerPack,
		QtyPerInnerPack: &qtyPerInnerPack,
		IsBOM:           true,
	}

	components := make([]entity.BOMComponent, 0, len(item.BOMDetails))
	for _, bom := range item.BOMDetails {
		components = append(components, entity.BOMComponent{
			ComponentSKU:         bom.GTIN.String(),
			ComponentSize:        bom.SizeDescription.String(),
			ComponentQty:         f.norm.BoundedInt(bom.Quantity, 1),
			ComponentUnitPrice:   f.norm.BoundedFloat(bom.UnitPrice, 0),
			ComponentRetailPrice: f.norm.BoundedFloat(bom.RetailPrice, 0),
		})
	}

	return FlatDetail{Detail: detail, Components: components}
}

// bulkDetail flattens one BULK line item. Color and size come straight from
// the line item; retail price and pack fields stay absent when the source
// value is missing or falsy.
func (f *Flattener) bulkDetail(item LineItem) FlatDetail {
	detail := entity.OrderDetail{
		Style:     item.VendorItemNumber.String(),
		Color:     item.ColorDescription.String(),
		Size:      item.SizeDescription.String(),
		Qty:       f.norm.BoundedInt(item.Quantity, 0),
		UPC:       item.GTIN.String(),
		SKU:       item.BuyerPartNumber.String(),
		UOM:       item.UOMTypeCode.String(),
		UnitPrice: f.norm.BoundedFloat(item.UnitPrice, 0),
		IsBOM:     false,
	}

	if !falsy(item.RetailPrice) {
		retail := f.norm.BoundedFloat(item.RetailPrice, 0)
		detail.RetailPrice = &retail
	}
	if !falsy(item.PackSize) {
		innerPack := f.norm.BoundedInt(item.PackSize, 0)
		detail.InnerPack = &innerPack
	}
	if !falsy(item.Pack) {
		qtyPerInnerPack := f.norm.BoundedInt(item.Pack, 0)
		detail.QtyPerInnerPack = &qtyPerInnerPack
	}

	return FlatDetail{Detail: detail, Components: nil}
}

// orMissing substitutes def when the source key was absent or null.
func orMissing(value any, def any) any {
	if value == nil {
		return def
	}
	return value
}

// falsy reports whether a decoded JSON scalar is missing, zero, or empty.
func falsy(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case Text:
		return v == ""
	case float64:
		return v == 0
	case int:
		return v == 0
	case bool:
		return !v
	default:
		return false
	}
}
