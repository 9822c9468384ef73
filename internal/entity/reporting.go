package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Order types assigned by classification.
const (
	OrderTypePrepack = "PREPACK"
	OrderTypeBulk    = "BULK"
)

// OrderHeader is one purchase order version. (customer_po, version) is
// unique; version ranks versions of a PO by download date.
type OrderHeader struct {
	bun.BaseModel `bun:"table:edi_report_header"`

	ID            int64      `bun:",pk,autoincrement"`
	CustomerPO    string     `bun:"customer_po,notnull"`
	Company       string     `bun:"company,nullzero"`
	OrderDate     *time.Time `bun:"order_date"`
	StartDate     *time.Time `bun:"start_date"`
	CompleteDate  *time.Time `bun:"complete_date"`
	Department    string     `bun:"department,nullzero"`
	DownloadDate  time.Time  `bun:"download_date,notnull"`
	POType        string     `bun:"po_type"`
	Version       int        `bun:"version,notnull"`
	SourceTableID int64      `bun:"source_table_id"`
	ProcessedDate time.Time  `bun:"processed_date,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// OrderDetail is one flattened line item owned by a header.
type OrderDetail struct {
	bun.BaseModel `bun:"table:edi_report_detail"`

	ID              int64    `bun:",pk,autoincrement"`
	HeaderID        int64    `bun:"header_id"`
	Style           string   `bun:"style,nullzero"`
	Color           string   `bun:"color,nullzero"`
	Size            string   `bun:"size,nullzero"`
	Qty             int      `bun:"qty"`
	UPC             string   `bun:"upc,nullzero"`
	SKU             string   `bun:"sku,nullzero"`
	UOM             string   `bun:"uom,nullzero"`
	UnitPrice       float64  `bun:"unit_price"`
	RetailPrice     *float64 `bun:"retail_price"`
	InnerPack       *int     `bun:"inner_pack"`
	QtyPerInnerPack *int     `bun:"qty_per_inner_pack"`
	DC              string   `bun:"dc,nullzero"`
	StoreNumber     string   `bun:"store_number,nullzero"`
	IsBOM           bool     `bun:"is_bom"`
}

// BOMComponent is one assortment member of a PREPACK detail row.
type BOMComponent struct {
	bun.BaseModel `bun:"table:edi_report_bom_component"`

	ID                   int64   `bun:",pk,autoincrement"`
	DetailID             int64   `bun:"detail_id"`
	ComponentSKU         string  `bun:"component_sku,nullzero"`
	ComponentSize        string  `bun:"component_size,nullzero"`
	ComponentQty         int     `bun:"component_qty"`
	ComponentUnitPrice   float64 `bun:"component_unit_price"`
	ComponentRetailPrice float64 `bun:"component_retail_price"`
}

// Audit event types, one row appended per ETL run.
const (
	AuditEventNormalRun    = "NORMAL_RUN"
	AuditEventReprocessAll = "REPROCESS_ALL"
)

// AuditLog summarizes a single ETL run.
type AuditLog struct {
	bun.BaseModel `bun:"table:edi_etl_audit_log"`

	ID               int64     `bun:",pk,autoincrement"`
	EventType        string    `bun:"event_type,notnull"`
	RecordsProcessed int       `bun:"records_processed"`
	RecordsSucceeded int       `bun:"records_succeeded"`
	RecordsFailed    int       `bun:"records_failed"`
	ErrorSummary     string    `bun:"error_summary,nullzero"`
	InitiatedBy      string    `bun:"initiated_by,nullzero"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
