package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/metrics"
	"github.com/xtding233/wish-ledger/internal/pricing"
	"github.com/xtding233/wish-ledger/internal/store/memory"
)

const catalogYAML = `
version: test
items:
  - {id: 1, name: "Dull Blade", star: false, released: "2020-09-28"}
  - {id: 2, name: "Slingshot", star: false, released: "2020-09-28"}
  - {id: 10, name: "Diluc", star: true, released: "2020-09-28"}
  - {id: 20, name: "Venti", star: true, released: "2020-09-28"}
banners:
  - {id: 1, name: "Ballad in Goblets", kind: character, rate_up: 20, cutoff: "2020-12-01"}
  - {id: 2, name: "Epitome Invocation", kind: weapon, rate_up: 10, cutoff: "2020-12-01"}
`

// one common hit per step: tier roll, then pool pick
var commonStep = []float64{0.5, 0.05}

type scripted struct {
	mu   sync.Mutex
	vals []float64
	i    int
}

func (s *scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

var testShop = pricing.Shop{
	Currency: "CAD",
	Packs: []pricing.Pack{
		{ID: "A", Name: "Single", Tickets: 1, PriceCents: 100},
		{ID: "B", Name: "Bundle", Tickets: 10, PriceCents: 800},
	},
}

func init() { gin.SetMode(gin.TestMode) }

func newServer(t *testing.T, opts ...ledger.Option) *Server {
	t.Helper()
	snap, err := catalog.Parse([]byte(catalogYAML))
	require.NoError(t, err)
	opts = append([]ledger.Option{ledger.WithRandom(&scripted{vals: commonStep})}, opts...)
	l := ledger.New(memory.New(), catalog.NewStatic(snap), opts...)
	return New(l, Options{Shop: testShop, Metrics: metrics.New(metrics.Options{}).Handler()})
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, s *Server, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	status, env := do(t, newServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, CodeOK, env.Code)
	assert.JSONEq(t, `{"status":"ok","catalog_version":"test"}`, string(env.Data))
}

func TestDraw(t *testing.T) {
	s := newServer(t)
	status, env := do(t, s, http.MethodPost, "/v1/users/7/draws", gin.H{"banner_id": 1, "count": 2})
	require.Equal(t, http.StatusOK, status, env.Message)

	var res drawResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Items, 2)
	assert.EqualValues(t, 2, res.Cost)
	assert.EqualValues(t, 998, res.Balance)
	assert.Equal(t, 2, res.Pity)
	assert.NotEmpty(t, res.SessionID)

	status, env = do(t, s, http.MethodGet, "/v1/users/7", nil)
	require.Equal(t, http.StatusOK, status)
	var acc accountResponse
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.EqualValues(t, 998, acc.Balance)
	assert.EqualValues(t, 2, acc.Inventory[1])
}

func TestDrawZeroReturnsEmptyItems(t *testing.T) {
	status, env := do(t, newServer(t), http.MethodPost, "/v1/users/7/draws", gin.H{"banner_id": 1, "count": 0})
	require.Equal(t, http.StatusOK, status)
	var res map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []any{}, res["items"])
}

func TestDrawErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   int
	}{
		{"bad user id", "/v1/users/abc/draws", gin.H{"banner_id": 1, "count": 1}, http.StatusBadRequest, CodeBadRequest},
		{"zero user id", "/v1/users/0/draws", gin.H{"banner_id": 1, "count": 1}, http.StatusBadRequest, CodeBadRequest},
		{"missing banner", "/v1/users/1/draws", gin.H{"count": 1}, http.StatusBadRequest, CodeBadRequest},
		{"negative count", "/v1/users/1/draws", gin.H{"banner_id": 1, "count": -1}, http.StatusBadRequest, CodeBadRequest},
		{"too many", "/v1/users/1/draws", gin.H{"banner_id": 1, "count": MaxDrawsPerRequest + 1}, http.StatusBadRequest, CodeBadRequest},
		{"unknown banner", "/v1/users/1/draws", gin.H{"banner_id": 99, "count": 1}, http.StatusNotFound, CodeNotFound},
		{"weapon banner", "/v1/users/1/draws", gin.H{"banner_id": 2, "count": 1}, http.StatusNotImplemented, CodeNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, newServer(t), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, env.Code)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestDrawInsufficientFunds(t *testing.T) {
	s := newServer(t, ledger.WithStartingBalance(0))
	status, env := do(t, s, http.MethodPost, "/v1/users/3/draws", gin.H{"banner_id": 1, "count": 1})
	require.Equal(t, http.StatusOK, status)
	var res drawResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Items)

	s = newServer(t, ledger.WithStartingBalance(0), ledger.WithStrictFunds(true))
	status, env = do(t, s, http.MethodPost, "/v1/users/3/draws", gin.H{"banner_id": 1, "count": 1})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, CodeInsufficientFunds, env.Code)
}

func TestGrant(t *testing.T) {
	s := newServer(t)
	status, env := do(t, s, http.MethodPost, "/v1/users/5/grants", gin.H{"amount": 25})
	require.Equal(t, http.StatusOK, status)
	var acc accountResponse
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.EqualValues(t, 1025, acc.Balance)

	status, env = do(t, s, http.MethodPost, "/v1/users/5/grants", gin.H{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeBadRequest, env.Code)
}

func TestQuote(t *testing.T) {
	s := newServer(t, ledger.WithStartingBalance(5))
	status, env := do(t, s, http.MethodGet, "/v1/users/9/quote?draws=15", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var q pricing.Quote
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.EqualValues(t, 10, q.Short)
	assert.Equal(t, 800, q.Plan.TotalCents)

	status, _ = do(t, s, http.MethodGet, "/v1/users/9/quote", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQuoteRejectsHugeDraws(t *testing.T) {
	s := newServer(t, ledger.WithPrice(ledger.Price{PerDraw: 2}))
	for _, draws := range []string{"9223372036854775807", "1001"} {
		status, env := do(t, s, http.MethodGet, "/v1/users/1/quote?draws="+draws, nil)
		assert.Equal(t, http.StatusBadRequest, status, draws)
		assert.Equal(t, CodeBadRequest, env.Code, draws)
	}

	status, env := do(t, s, http.MethodGet, "/v1/users/1/quote?draws=1000", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var q pricing.Quote
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.EqualValues(t, 2000, q.Needed)
	assert.EqualValues(t, 1000, q.Short)
}

func TestBudget(t *testing.T) {
	s := newServer(t)
	status, env := do(t, s, http.MethodGet, "/v1/quote/budget?cents=950", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var plan pricing.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, 11, plan.TotalTickets)
	assert.Equal(t, 900, plan.TotalCents)

	for _, q := range []string{"", "?cents=0", "?cents=abc", "?cents=1000001"} {
		status, env = do(t, s, http.MethodGet, "/v1/quote/budget"+q, nil)
		assert.Equal(t, http.StatusBadRequest, status, q)
		assert.Equal(t, CodeBadRequest, env.Code, q)
	}
}

func TestBudgetFirstTimeDouble(t *testing.T) {
	shop := pricing.Shop{Packs: []pricing.Pack{{ID: "A", Name: "Single", Tickets: 1, FirstTimeX2: true, PriceCents: 100}}}
	s := New(panicking{}, Options{Shop: shop})

	status, env := do(t, s, http.MethodGet, "/v1/quote/budget?cents=300&first_time=A", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	var plan pricing.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, 4, plan.TotalTickets)

	status, env = do(t, s, http.MethodGet, "/v1/quote/budget?cents=300", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, 3, plan.TotalTickets)
}

func TestAccountCreatesUnknownUser(t *testing.T) {
	snap, err := catalog.Parse([]byte(catalogYAML))
	require.NoError(t, err)
	store := memory.New()
	s := New(ledger.New(store, catalog.NewStatic(snap)), Options{})

	status, env := do(t, s, http.MethodGet, "/v1/users/12", nil)
	require.Equal(t, http.StatusOK, status)
	var acc accountResponse
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.EqualValues(t, ledger.DefaultStartingBalance, acc.Balance)
	assert.Equal(t, 1, store.Len())
}

func TestPoolAndCurve(t *testing.T) {
	s := newServer(t)
	status, env := do(t, s, http.MethodGet, "/v1/banners/1/pool", nil)
	require.Equal(t, http.StatusOK, status)
	var pool struct {
		TotalWeight int         `json:"total_weight"`
		Entries     []poolEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pool))
	assert.Equal(t, 8, pool.TotalWeight)
	require.Len(t, pool.Entries, 4)
	last := pool.Entries[3]
	assert.True(t, last.RateUp)
	assert.InDelta(t, 5.0/8.0, last.Probability, 1e-12)

	status, _ = do(t, s, http.MethodGet, "/v1/banners/42/pool", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = do(t, s, http.MethodGet, "/v1/curve", nil)
	require.Equal(t, http.StatusOK, status)
	var curve struct {
		Table []float64 `json:"table"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &curve))
	require.Len(t, curve.Table, 91)
	assert.Equal(t, 1.0, curve.Table[90])

	status, env = do(t, s, http.MethodGet, "/v1/banners", nil)
	require.Equal(t, http.StatusOK, status)
	var banners []bannerResponse
	require.NoError(t, json.Unmarshal(env.Data, &banners))
	assert.Len(t, banners, 2)
}

func TestMetricsMounted(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(t).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type panicking struct{ Service }

func (panicking) Account(context.Context, int64) (*ledger.User, error) { panic("boom") }

func TestRecovery(t *testing.T) {
	s := New(panicking{}, Options{})
	status, env := do(t, s, http.MethodGet, "/v1/users/1", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, env.Code)
}
