package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Reporting process statuses stamped onto inbound records.
const (
	ReportingStatusSuccess = "Success"
	ReportingStatusFailed  = "Failed"
)

// InboundRecord is one raw EDI transmission staged by the gateway. The
// gateway owns creation; the ETL only updates the reporting_* columns.
type InboundRecord struct {
	bun.BaseModel `bun:"table:edi_gateway_inbound"`

	ID                     int64      `bun:",pk,autoincrement"`
	Created                time.Time  `bun:"created,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	CompanyCode            string     `bun:"company_code"`
	Channel                string     `bun:"channel"`
	TransactionType        string     `bun:"transaction_type"`
	Status                 string     `bun:"status"`
	JSONContent            []byte     `bun:"json_content"`
	ReportingProcessStatus string     `bun:"reporting_process_status,nullzero"`
	ReportingProcessError  string     `bun:"reporting_process_error,nullzero"`
	ReportingProcessed     *time.Time `bun:"reporting_processed"`
}
