package edi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/edibridge/internal/entity"
)

const prepackPayload = `{
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
					"GTIN": "00012345678905",
					"Quantity": 100,
					"UnitPrice": 12.5,
					"Pack": 4,
					"PackSize": 6,
					"BOMDetails": [
						{"GTIN": "C1", "ColorDescription": "BLACK", "SizeDescription": "S", "Quantity": 1, "UnitPrice": 12.5},
						{"GTIN": "C2", "ColorDescription": "BLACK", "SizeDescription": "M", "Quantity": 2, "UnitPrice": 12.5},
						{"GTIN": "C3", "ColorDescription": "BLACK", "SizeDescription": "L", "Quantity": 1, "UnitPrice": 12.5},
						{"GTIN": "C4", "ColorDescription": "BLACK", "SizeDescription": "XL", "Quantity": "bad", "UnitPrice": 12.5}
					]
				}
			]
		}
	}
}`

const bulkPayload = `{
	"PurchaseOrderHeader": {
		"PurchaseOrderNumber": "15826581",
		"CompanyCode": "ACME",
		"OrderDate": "20240111",
		"PurchaseOrder": {
			"PurchaseOrderDetails": [
				{"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "M", "Quantity": 48, "UnitPrice": 9.99, "RetailPrice": 19.99, "Pack": 2, "PackSize": 12},
				{"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "L", "Quantity": 36, "UnitPrice": 9.99},
				{"VendorItemNumber": "STYLE-201", "ColorDescription": "RED", "SizeDescription": "S", "Quantity": 24, "UnitPrice": 7.5, "RetailPrice": 0}
			]
		}
	}
}`

func TestFlattenPrepack(t *testing.T) {
	f := NewFlattener(NewNormalizer(nil))
	p := mustParse(t, prepackPayload)
	require.NoError(t, Validate(p))

	download := time.Date(2024, 1, 12, 9, 30, 0, 0, time.UTC)
	flat := f.Flatten(p, entity.OrderTypePrepack, download, 77, 2)

	hdr := flat.Header
	assert.Equal(t, "15826580", hdr.CustomerPO)
	assert.Equal(t, "ACME", hdr.Company)
	assert.Equal(t, "045", hdr.Department)
	assert.Equal(t, entity.OrderTypePrepack, hdr.POType)
	assert.Equal(t, 2, hdr.Version)
	assert.Equal(t, int64(77), hdr.SourceTableID)
	assert.Equal(t, download, hdr.DownloadDate)
	require.NotNil(t, hdr.OrderDate)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *hdr.OrderDate)
	require.NotNil(t, hdr.StartDate)
	require.NotNil(t, hdr.CompleteDate)

	require.Len(t, flat.Details, 1)
	d := flat.Details[0].Detail
	assert.True(t, d.IsBOM)
	assert.Equal(t, "STYLE-100", d.Style)
	// line color comes from the first assortment member; size stays line-less
	assert.Equal(t, "BLACK", d.Color)
	assert.Empty(t, d.Size)
	assert.Equal(t, 100, d.Qty)
	require.NotNil(t, d.InnerPack)
	assert.Equal(t, 4, *d.InnerPack)
	require.NotNil(t, d.QtyPerInnerPack)
	assert.Equal(t, 6, *d.QtyPerInnerPack)

	comps := flat.Details[0].Components
	require.Len(t, comps, 4)
	assert.Equal(t, "C1", comps[0].ComponentSKU)
	assert.Equal(t, "S", comps[0].ComponentSize)
	assert.Equal(t, 1, comps[0].ComponentQty)
	assert.Equal(t, 2, comps[1].ComponentQty)
	// unparseable component quantity falls back to one unit
	assert.Equal(t, 1, comps[3].ComponentQty)
}

func TestFlattenPrepackMissingPackFields(t *testing.T) {
	f := NewFlattener(NewNormalizer(nil))
	p := mustParse(t, `{
		"PurchaseOrderHeader": {
			"PurchaseOrderNumber": "1", "CompanyCode": "ACME",
			"PurchaseOrder": {"ReferencePOType": "PREPACK", "PurchaseOrderDetails": [
				{"VendorItemNumber": "A", "Quantity": 10, "BOMDetails": [{"GTIN": "C1"}]}
			]}
		}
	}`)
	require.NoError(t, Validate(p))

	flat := f.Flatten(p, entity.OrderTypePrepack, time.Now(), 1, 1)
	require.Len(t, flat.Details, 1)
	d := flat.Details[0].Detail
	require.NotNil(t, d.InnerPack)
	assert.Equal(t, 1, *d.InnerPack)
	require.NotNil(t, d.QtyPerInnerPack)
	assert.Equal(t, 1, *d.QtyPerInnerPack)
}

func TestFlattenBulk(t *testing.T) {
	f := NewFlattener(NewNormalizer(nil))
	p := mustParse(t, bulkPayload)
	require.NoError(t, Validate(p))

	flat := f.Flatten(p, entity.OrderTypeBulk, time.Now(), 5, 1)
	require.Len(t, flat.Details, 3)

	full := flat.Details[0].Detail
	assert.False(t, full.IsBOM)
	assert.Equal(t, "NAVY", full.Color)
	assert.Equal(t, "M", full.Size)
	assert.Equal(t, 48, full.Qty)
	require.NotNil(t, full.RetailPrice)
	assert.InDelta(t, 19.99, *full.RetailPrice, 1e-9)
	// pack fields cross over: PackSize feeds inner_pack, Pack feeds qty_per_inner_pack
	require.NotNil(t, full.InnerPack)
	assert.Equal(t, 12, *full.InnerPack)
	require.NotNil(t, full.QtyPerInnerPack)
	assert.Equal(t, 2, *full.QtyPerInnerPack)
	assert.Empty(t, flat.Details[0].Components)

	sparse := flat.Details[1].Detail
	assert.Nil(t, sparse.RetailPrice)
	assert.Nil(t, sparse.InnerPack)
	assert.Nil(t, sparse.QtyPerInnerPack)

	// zero-valued retail price stays absent rather than persisting 0
	zeroRetail := flat.Details[2].Detail
	assert.Nil(t, zeroRetail.RetailPrice)
}

func TestFlattenRowCounts(t *testing.T) {
	f := NewFlattener(NewNormalizer(nil))
	p := mustParse(t, prepackPayload)
	require.NoError(t, Validate(p))

	flat := f.Flatten(p, entity.OrderTypePrepack, time.Now(), 1, 1)

	totalComponents := 0
	for _, d := range flat.Details {
		totalComponents += len(d.Components)
	}
	assert.Equal(t, 1, len(flat.Details))
	assert.Equal(t, 4, totalComponents)
}
