package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/edibridge/internal/config"
	"github.com/Additional-Code/edibridge/internal/edi"
	"github.com/Additional-Code/edibridge/internal/entity"
	"github.com/Additional-Code/edibridge/internal/repository/gateway"
	"github.com/Additional-Code/edibridge/internal/staging"
	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

const prepackPayload = `{
	"PurchaseOrderHeader": {
		"PurchaseOrderNumber": "15826580",
		"CompanyCode": "ACME",
		"OrderDate": "20240110",
		"PurchaseOrder": {
			"ReferencePOType": "PREPACK",
			"PurchaseOrderDetails": [
				{
					"VendorItemNumber": "STYLE-100",
					"Quantity": 100,
					"UnitPrice": 12.5,
					"Pack": 4,
					"PackSize": 6,
					"BOMDetails": [
						{"GTIN": "C1", "ColorDescription": "BLACK", "SizeDescription": "S", "Quantity": 1},
						{"GTIN": "C2", "ColorDescription": "BLACK", "SizeDescription": "M", "Quantity": 2},
						{"GTIN": "C3", "ColorDescription": "BLACK", "SizeDescription": "L", "Quantity": 1},
						{"GTIN": "C4", "ColorDescription": "BLACK", "SizeDescription": "XL", "Quantity": 1}
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
				{"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "M", "Quantity": 48, "UnitPrice": 9.99},
				{"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "L", "Quantity": 36, "UnitPrice": 9.99},
				{"VendorItemNumber": "STYLE-200", "ColorDescription": "NAVY", "SizeDescription": "XL", "Quantity": 12, "UnitPrice": 9.99}
			]
		}
	}
}`

const invalidPayload = `{
	"PurchaseOrderHeader": {
		"PurchaseOrderNumber": "15826582",
		"OrderDate": "20240112"
	}
}`

type fakeSource struct {
	records    []entity.InboundRecord
	fetchErr   error
	fetchOpts  []gateway.FetchOptions
	statuses   map[int64]string
	statusErrs map[int64]string
	markedAll  bool
	resetRet   int64
	resetErr   error
	resetDone  bool
}

func newFakeSource(records ...entity.InboundRecord) *fakeSource {
	return &fakeSource{
		records:    records,
		statuses:   map[int64]string{},
		statusErrs: map[int64]string{},
	}
}

func (f *fakeSource) FetchPending(_ context.Context, opts gateway.FetchOptions) ([]entity.InboundRecord, error) {
	f.fetchOpts = append(f.fetchOpts, opts)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.records, nil
}

func (f *fakeSource) MarkStatus(_ context.Context, id int64, status, errorMessage string) error {
	f.statuses[id] = status
	f.statusErrs[id] = errorMessage
	return nil
}

func (f *fakeSource) MarkAllProcessed(context.Context, string, []string) error {
	f.markedAll = true
	return nil
}

func (f *fakeSource) ResetFailed(context.Context) (int64, error) {
	f.resetDone = true
	return f.resetRet, f.resetErr
}

type fakeSink struct {
	headers   map[staging.TableSet][]entity.OrderHeader
	details   map[staging.TableSet][]entity.OrderDetail
	comps     map[staging.TableSet][]entity.BOMComponent
	audits    []entity.AuditLog
	deleted   []int64
	nextID    int64
	headerErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		headers: map[staging.TableSet][]entity.OrderHeader{},
		details: map[staging.TableSet][]entity.OrderDetail{},
		comps:   map[staging.TableSet][]entity.BOMComponent{},
	}
}

func (f *fakeSink) InsertHeader(_ context.Context, ts staging.TableSet, header *entity.OrderHeader) error {
	if f.headerErr != nil {
		return f.headerErr
	}
	f.nextID++
	header.ID = f.nextID
	f.headers[ts] = append(f.headers[ts], *header)
	return nil
}

func (f *fakeSink) InsertDetail(_ context.Context, ts staging.TableSet, detail *entity.OrderDetail) error {
	f.nextID++
	detail.ID = f.nextID
	f.details[ts] = append(f.details[ts], *detail)
	return nil
}

func (f *fakeSink) InsertBOMComponent(_ context.Context, ts staging.TableSet, component *entity.BOMComponent) error {
	f.nextID++
	component.ID = f.nextID
	f.comps[ts] = append(f.comps[ts], *component)
	return nil
}

func (f *fakeSink) NextVersion(_ context.Context, ts staging.TableSet, customerPO string, downloadDate time.Time) (int, error) {
	count := 0
	for _, h := range f.headers[ts] {
		if h.CustomerPO == customerPO && h.DownloadDate.Before(downloadDate) {
			count++
		}
	}
	return count + 1, nil
}

func (f *fakeSink) DeleteBySource(_ context.Context, sourceID int64) error {
	f.deleted = append(f.deleted, sourceID)
	kept := f.headers[staging.Production][:0]
	for _, h := range f.headers[staging.Production] {
		if h.SourceTableID != sourceID {
			kept = append(kept, h)
		}
	}
	f.headers[staging.Production] = kept
	return nil
}

func (f *fakeSink) InsertAuditLog(_ context.Context, log *entity.AuditLog) error {
	f.audits = append(f.audits, *log)
	return nil
}

func (f *fakeSink) LatestAuditLogs(_ context.Context, limit int) ([]entity.AuditLog, error) {
	if limit <= 0 || limit > len(f.audits) {
		limit = len(f.audits)
	}
	return f.audits[:limit], nil
}

type fakeStager struct {
	initialized bool
	promoted    bool
	initErr     error
	promoteErr  error
}

func (f *fakeStager) Initialize(context.Context) error {
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized = true
	return nil
}

func (f *fakeStager) Promote(context.Context) error {
	if f.promoteErr != nil {
		return f.promoteErr
	}
	f.promoted = true
	return nil
}

func newTestService(src GatewaySource, sink ReportingSink, st Stager) *Service {
	return &Service{
		source:    src,
		sink:      sink,
		stager:    st,
		flattener: edi.NewFlattener(edi.NewNormalizer(nil)),
		logger:    zap.NewNop(),
		etlCfg: config.ETL{
			TransactionType:  "850",
			AcceptedStatuses: []string{"downloaded", "Obsolete"},
			LogErrorLimit:    5,
			AuditErrorLimit:  10,
			InitiatedBy:      "test",
		},
	}
}

func record(id int64, created time.Time, content string) entity.InboundRecord {
	return entity.InboundRecord{
		ID:              id,
		Created:         created,
		TransactionType: "850",
		Status:          "downloaded",
		JSONContent:     []byte(content),
	}
}

func TestProcessIncremental(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(
		record(1, t0, prepackPayload),
		record(2, t0.Add(time.Hour), bulkPayload),
	)
	sink := newFakeSink()
	stager := &fakeStager{}
	svc := newTestService(src, sink, stager)

	summary, err := svc.Process(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Errors)

	// incremental writes land in production; staging never touched
	assert.False(t, stager.initialized)
	require.Len(t, sink.headers[staging.Production], 2)
	assert.Empty(t, sink.headers[staging.Staging])

	prepack := sink.headers[staging.Production][0]
	assert.Equal(t, "15826580", prepack.CustomerPO)
	assert.Equal(t, entity.OrderTypePrepack, prepack.POType)
	assert.Equal(t, 1, prepack.Version)

	bulk := sink.headers[staging.Production][1]
	assert.Equal(t, entity.OrderTypeBulk, bulk.POType)

	// one prepack detail with four components plus three bulk details
	require.Len(t, sink.details[staging.Production], 4)
	require.Len(t, sink.comps[staging.Production], 4)

	// child rows reference their parents
	for _, d := range sink.details[staging.Production] {
		assert.NotZero(t, d.HeaderID)
	}
	for _, c := range sink.comps[staging.Production] {
		assert.NotZero(t, c.DetailID)
	}

	assert.Equal(t, entity.ReportingStatusSuccess, src.statuses[1])
	assert.Equal(t, entity.ReportingStatusSuccess, src.statuses[2])

	require.Len(t, sink.audits, 1)
	audit := sink.audits[0]
	assert.Equal(t, entity.AuditEventNormalRun, audit.EventType)
	assert.Equal(t, 2, audit.RecordsProcessed)
	assert.Equal(t, 2, audit.RecordsSucceeded)
	assert.Empty(t, audit.ErrorSummary)

	require.Len(t, src.fetchOpts, 1)
	assert.True(t, src.fetchOpts[0].PendingOnly)
	assert.Equal(t, "850", src.fetchOpts[0].TransactionType)
}

func TestProcessIsolatesRecordFailures(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(
		record(1, t0, prepackPayload),
		record(2, t0.Add(time.Minute), invalidPayload),
		record(3, t0.Add(2*time.Minute), bulkPayload),
	)
	sink := newFakeSink()
	svc := newTestService(src, sink, &fakeStager{})

	summary, err := svc.Process(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, entity.ReportingStatusSuccess, src.statuses[1])
	assert.Equal(t, entity.ReportingStatusFailed, src.statuses[2])
	assert.Equal(t, entity.ReportingStatusSuccess, src.statuses[3])
	assert.Contains(t, src.statusErrs[2], "CompanyCode")

	// the failed record contributes no rows
	for _, h := range sink.headers[staging.Production] {
		assert.NotEqual(t, int64(2), h.SourceTableID)
	}

	require.Len(t, sink.audits, 1)
	assert.Equal(t, 1, sink.audits[0].RecordsFailed)
	assert.Contains(t, sink.audits[0].ErrorSummary, "id=2")
}

func TestVersionsRankByDownloadDate(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(
		record(1, t0, prepackPayload),
		record(2, t0.Add(time.Hour), prepackPayload),
		record(3, t0.Add(2*time.Hour), prepackPayload),
	)
	sink := newFakeSink()
	svc := newTestService(src, sink, &fakeStager{})

	_, err := svc.Process(context.Background(), ModeIncremental)
	require.NoError(t, err)

	require.Len(t, sink.headers[staging.Production], 3)
	for i, h := range sink.headers[staging.Production] {
		assert.Equal(t, i+1, h.Version)
		assert.Equal(t, "15826580", h.CustomerPO)
	}
}

func TestIncrementalReplacesPriorOutput(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	succeeded := record(1, t0, prepackPayload)
	succeeded.ReportingProcessStatus = entity.ReportingStatusSuccess
	failed := record(2, t0.Add(time.Hour), bulkPayload)
	failed.ReportingProcessStatus = entity.ReportingStatusFailed

	src := newFakeSource(succeeded, failed)
	sink := newFakeSink()
	svc := newTestService(src, sink, &fakeStager{})

	_, err := svc.Process(context.Background(), ModeIncremental)
	require.NoError(t, err)

	// only the previously successful record gets its old rows cleared
	assert.Equal(t, []int64{1}, sink.deleted)
}

func TestRebuildPromotesOnCleanRun(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(
		record(1, t0, prepackPayload),
		record(2, t0.Add(time.Hour), bulkPayload),
	)
	sink := newFakeSink()
	stager := &fakeStager{}
	svc := newTestService(src, sink, stager)

	summary, err := svc.Process(context.Background(), ModeRebuild)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)

	assert.True(t, stager.initialized)
	assert.True(t, stager.promoted)
	assert.True(t, src.markedAll)

	// rebuild writes go to staging, never straight to production
	assert.Empty(t, sink.headers[staging.Production])
	require.Len(t, sink.headers[staging.Staging], 2)

	// per-record stamping is deferred to the post-promotion sweep
	assert.Empty(t, src.statuses)

	// rebuild fetches everything, not just pending
	require.Len(t, src.fetchOpts, 1)
	assert.False(t, src.fetchOpts[0].PendingOnly)

	require.Len(t, sink.audits, 1)
	assert.Equal(t, entity.AuditEventReprocessAll, sink.audits[0].EventType)
}

func TestRebuildAbortsOnAnyFailure(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(
		record(1, t0, prepackPayload),
		record(2, t0.Add(time.Hour), invalidPayload),
	)
	sink := newFakeSink()
	stager := &fakeStager{}
	svc := newTestService(src, sink, stager)

	summary, err := svc.Process(context.Background(), ModeRebuild)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production data unchanged")

	assert.Equal(t, 1, summary.Failed)
	assert.False(t, stager.promoted)
	assert.False(t, src.markedAll)

	// the failed rebuild still leaves an audit trail
	require.Len(t, sink.audits, 1)
	assert.Equal(t, entity.AuditEventReprocessAll, sink.audits[0].EventType)
	assert.Equal(t, 1, sink.audits[0].RecordsFailed)
}

func TestRebuildSurfacesPromotionFailure(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(record(1, t0, bulkPayload))
	sink := newFakeSink()
	stager := &fakeStager{promoteErr: errorbank.Promotion("staging swap failed")}
	svc := newTestService(src, sink, stager)

	_, err := svc.Process(context.Background(), ModeRebuild)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindPromotion, errorbank.From(err).Kind())
	assert.False(t, src.markedAll)
}

func TestProcessRejectsConcurrentRuns(t *testing.T) {
	src := newFakeSource()
	sink := newFakeSink()
	svc := newTestService(src, sink, &fakeStager{})

	svc.running.Store(true)
	_, err := svc.Process(context.Background(), ModeIncremental)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
	assert.Empty(t, sink.audits)
}

func TestProcessFetchFailure(t *testing.T) {
	src := newFakeSource()
	src.fetchErr = errors.New("connection refused")
	svc := newTestService(src, newFakeSink(), &fakeStager{})

	_, err := svc.Process(context.Background(), ModeIncremental)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindPersistence, errorbank.From(err).Kind())
}

func TestReprocessFailed(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	src := newFakeSource(record(1, t0, bulkPayload))
	src.resetRet = 1
	sink := newFakeSink()
	svc := newTestService(src, sink, &fakeStager{})

	summary, err := svc.ReprocessFailed(context.Background())
	require.NoError(t, err)

	assert.True(t, src.resetDone)
	assert.Equal(t, ModeIncremental, summary.Mode)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestAuditErrorSummaryIsCapped(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	records := make([]entity.InboundRecord, 0, 12)
	for i := 1; i <= 12; i++ {
		records = append(records, record(int64(i), t0.Add(time.Duration(i)*time.Minute), invalidPayload))
	}
	src := newFakeSource(records...)
	sink := newFakeSink()
	svc := newTestService(src, sink, &fakeStager{})

	summary, err := svc.Process(context.Background(), ModeIncremental)
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Failed)
	// summary carries the log cap, the audit row the larger audit cap
	assert.Len(t, summary.Errors, 5)
	require.Len(t, sink.audits, 1)
	entries := strings.Split(sink.audits[0].ErrorSummary, "; ")
	assert.Len(t, entries, 10)
	for i, entry := range entries {
		assert.True(t, strings.HasPrefix(entry, fmt.Sprintf("id=%d:", i+1)), entry)
	}
}

func TestAuditHistory(t *testing.T) {
	sink := newFakeSink()
	sink.audits = []entity.AuditLog{
		{EventType: entity.AuditEventNormalRun},
		{EventType: entity.AuditEventReprocessAll},
	}
	svc := newTestService(newFakeSource(), sink, &fakeStager{})

	logs, err := svc.AuditHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
