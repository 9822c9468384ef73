package dto

import "time"

// RunRequest triggers an ETL run over the ops API.
type RunRequest struct {
	ReprocessAll    bool `json:"reprocess_all"`
	ReprocessFailed bool `json:"reprocess_failed"`
}

// RunResponse summarises one ETL run.
type RunResponse struct {
	Mode       string    `json:"mode"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// AuditLogResponse is one historical run record.
type AuditLogResponse struct {
	ID               int64     `json:"id"`
	EventType        string    `json:"event_type"`
	RecordsProcessed int       `json:"records_processed"`
	RecordsSucceeded int       `json:"records_succeeded"`
	RecordsFailed    int       `json:"records_failed"`
	ErrorSummary     string    `json:"error_summary,omitempty"`
	InitiatedBy      string    `json:"initiated_by"`
	CreatedAt        time.Time `json:"created_at"`
}
