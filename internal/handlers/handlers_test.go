package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
)

func discard() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newServer(register func(g *echo.Group)) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(discard())
	e.Use(middleware.Context())
	register(e.Group("/api/v1"))
	return e
}

func do(e *echo.Echo, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type fakeProcessor struct {
	items  []models.WorkItem
	result models.Result
}

func (f *fakeProcessor) Process(_ context.Context, item models.WorkItem) models.Result {
	f.items = append(f.items, item)
	return f.result
}

func TestShipmentHandler_Process(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		result models.Result
		code   int
		calls  int
	}{
		{
			name:   "processed",
			body:   `{"companyId":275,"shipmentRoutingId":10001}`,
			result: models.Result{OK: true, CompanyID: 275, ShipmentRoutingID: 10001, State: "PROCESSED"},
			code:   http.StatusOK,
			calls:  1,
		},
		{
			name:   "legacy aliases",
			body:   `{"idEmpresa":"275","did":"10001","shipmentId":"45399487764"}`,
			result: models.Result{OK: true, State: "PROCESSED"},
			code:   http.StatusOK,
			calls:  1,
		},
		{
			name: "failed result maps its kind",
			body: `{"companyId":275,"shipmentRoutingId":10001}`,
			result: models.Result{
				State: "FAILED", FailedAt: "STARTED", Error: string(apperrors.KindNotFound), Message: "routing row missing",
			},
			code:  apperrors.KindNotFound.StatusCode(),
			calls: 1,
		},
		{
			name: "invalid item",
			body: `{"companyId":0,"shipmentRoutingId":10001}`,
			code: http.StatusBadRequest,
		},
		{
			name: "malformed json",
			body: `{"companyId":`,
			code: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &fakeProcessor{result: tt.result}
			e := newServer(NewShipmentHandler(processor, discard()).RegisterRoutes)

			rec := do(e, http.MethodPost, "/api/v1/shipments/process", tt.body)

			assert.Equal(t, tt.code, rec.Code)
			require.Len(t, processor.items, tt.calls)
			if tt.calls == 0 {
				return
			}
			var got models.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.result, got)
		})
	}
}

func TestShipmentHandler_ProcessPassesLegacyIDs(t *testing.T) {
	processor := &fakeProcessor{result: models.Result{OK: true}}
	e := newServer(NewShipmentHandler(processor, discard()).RegisterRoutes)

	do(e, http.MethodPost, "/api/v1/shipments/process", `{"idEmpresa":275,"did":10001,"shipmentId":"45399487764","sellerId":"1964159102"}`)

	require.Len(t, processor.items, 1)
	assert.Equal(t, models.WorkItem{
		CompanyID:          275,
		ShipmentRoutingID:  10001,
		SellerID:           "1964159102",
		UpstreamShipmentID: "45399487764",
	}, processor.items[0])
}

type fakeSchemaCache struct {
	calls []string
}

func (f *fakeSchemaCache) Invalidate(companyID int64, table string) {
	f.calls = append(f.calls, "table")
}

func (f *fakeSchemaCache) InvalidateCompany(companyID int64) {
	f.calls = append(f.calls, "company")
}

func (f *fakeSchemaCache) InvalidateAll() {
	f.calls = append(f.calls, "all")
}

func TestSchemaHandler_Invalidate(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		scope string
	}{
		{name: "table", body: `{"companyId":275,"table":"envios"}`, code: http.StatusOK, scope: "table"},
		{name: "company", body: `{"companyId":275}`, code: http.StatusOK, scope: "company"},
		{name: "all", body: `{}`, code: http.StatusOK, scope: "all"},
		{name: "table without company", body: `{"table":"envios"}`, code: http.StatusBadRequest},
		{name: "negative company", body: `{"companyId":-1}`, code: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &fakeSchemaCache{}
			e := newServer(NewSchemaHandler(cache, discard()).RegisterRoutes)

			rec := do(e, http.MethodPost, "/api/v1/schema/invalidate", tt.body)

			assert.Equal(t, tt.code, rec.Code)
			if tt.scope == "" {
				assert.Empty(t, cache.calls)
				return
			}
			assert.Equal(t, []string{tt.scope}, cache.calls)
			var res InvalidateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.scope, res.Scope)
		})
	}
}

type fakeDLQ struct {
	entries   map[string]redis.DLQEntry
	listed    int64
	companyID int64
	retried   []string
}

func (f *fakeDLQ) List(_ context.Context, count int64) ([]redis.DLQEntry, error) {
	f.listed = count
	out := []redis.DLQEntry{}
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeDLQ) ListByCompany(_ context.Context, companyID int64, count int64) ([]redis.DLQEntry, error) {
	f.listed = count
	f.companyID = companyID
	var out []redis.DLQEntry
	for _, e := range f.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeDLQ) Get(_ context.Context, id string) (*redis.DLQEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "DLQ entry %s not found", id)
	}
	return &e, nil
}

func (f *fakeDLQ) Delete(_ context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return apperrors.Newf(apperrors.KindNotFound, "DLQ entry %s not found", id)
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeDLQ) Count(_ context.Context) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *fakeDLQ) Retry(ctx context.Context, id string, publisher redis.Republisher) error {
	e, err := f.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := publisher.Publish(ctx, []byte(e.OriginalItem)); err != nil {
		return err
	}
	f.retried = append(f.retried, id)
	delete(f.entries, id)
	return nil
}

type fakeRepublisher struct {
	bodies []string
}

func (f *fakeRepublisher) Publish(_ context.Context, body []byte) error {
	f.bodies = append(f.bodies, string(body))
	return nil
}

func newDLQ() *fakeDLQ {
	return &fakeDLQ{entries: map[string]redis.DLQEntry{
		"1-0": {MessageID: "1-0", CompanyID: 275, ShipmentRoutingID: 10001, OriginalItem: `{"companyId":275,"shipmentRoutingId":10001}`},
		"2-0": {MessageID: "2-0", CompanyID: 300, ShipmentRoutingID: 7},
	}}
}

func TestDLQHandler_List(t *testing.T) {
	dlq := newDLQ()
	e := newServer(NewDLQHandler(dlq, &fakeRepublisher{}, discard()).RegisterRoutes)

	rec := do(e, http.MethodGet, "/api/v1/dlq?count=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res DLQListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, int64(10), dlq.listed)

	rec = do(e, http.MethodGet, "/api/v1/dlq?companyId=275", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, int64(275), dlq.companyID)
	assert.Equal(t, int64(100), dlq.listed)

	rec = do(e, http.MethodGet, "/api/v1/dlq", "", middleware.HeaderCompanyID, "300")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(300), dlq.companyID)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "2-0", res.Entries[0].MessageID)

	rec = do(e, http.MethodGet, "/api/v1/dlq?companyId=999", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotNil(t, res.Entries)
	assert.Empty(t, res.Entries)

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/dlq?count=abc", "").Code)
}

func TestDLQHandler_GetRetryDelete(t *testing.T) {
	dlq := newDLQ()
	publisher := &fakeRepublisher{}
	e := newServer(NewDLQHandler(dlq, publisher, discard()).RegisterRoutes)

	rec := do(e, http.MethodGet, "/api/v1/dlq/1-0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry redis.DLQEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, int64(10001), entry.ShipmentRoutingID)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/dlq/9-9", "").Code)

	rec = do(e, http.MethodPost, "/api/v1/dlq/1-0/retry", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{`{"companyId":275,"shipmentRoutingId":10001}`}, publisher.bodies)
	assert.Equal(t, []string{"1-0"}, dlq.retried)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPost, "/api/v1/dlq/1-0/retry", "").Code)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodDelete, "/api/v1/dlq/2-0", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/api/v1/dlq/2-0", "").Code)

	rec = do(e, http.MethodGet, "/api/v1/dlq/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_entries":0}`, rec.Body.String())
}
