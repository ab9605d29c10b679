package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cas-inventory/backend/internal/application/finance"
	"github.com/cas-inventory/backend/internal/application/report"
	"github.com/cas-inventory/backend/internal/application/trade"
	"github.com/cas-inventory/backend/internal/infrastructure/persistence"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/cas-inventory/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

// testEnv wires real ledgers over an in-memory store
type testEnv struct {
	store     *persistence.MemoryStore
	debts     *finance.DebtLedger
	sales     *trade.SalesLedger
	analytics *report.AnalyticsService
	now       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	env := &testEnv{store: persistence.NewMemoryStore(), now: fixedNow}
	clock := func() time.Time { return env.now }

	var err error
	env.debts, err = finance.NewDebtLedger(ctx, env.store, finance.WithClock(clock))
	require.NoError(t, err)
	env.sales, err = trade.NewSalesLedger(ctx, env.store, trade.WithClock(clock), trade.WithLocation(time.UTC))
	require.NoError(t, err)
	env.analytics, err = report.NewAnalyticsService(ctx, env.sales, env.debts, env.store, report.WithClock(clock))
	require.NoError(t, err)
	return env
}

// newEngine returns a bare engine with the request ID middleware and validator set up
func newEngine() *gin.Engine {
	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	return engine
}

func doJSON(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	return decode[dto.ErrorResponse](t, w)
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
