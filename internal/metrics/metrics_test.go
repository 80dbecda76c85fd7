package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/wish-ledger/internal/gacha"
)

func TestObserveDraw(t *testing.T) {
	m := New(Options{})
	m.ObserveDraw(1, gacha.Summary{
		Produced:     10,
		RareHits:     3,
		RateUpHits:   2,
		ForcedRateUp: 1,
		LostRateUp:   1,
		Attempts:     17,
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues("1", "rare")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.items.WithLabelValues("1", "common")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateUps.WithLabelValues("1", "won")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateUps.WithLabelValues("1", "forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateUps.WithLabelValues("1", "lost")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.attempts))
}

func TestObserveTxAndFunds(t *testing.T) {
	m := New(Options{})
	m.ObserveTx("draw", nil, 3*time.Millisecond)
	m.ObserveTx("draw", errors.New("boom"), time.Millisecond)
	m.ObserveTx("grant", nil, time.Millisecond)
	m.InsufficientFunds(2)
	m.InsufficientFunds(2)
	m.CatalogReload(nil)
	m.CatalogReload(errors.New("bad yaml"))

	assert.Equal(t, 3, testutil.CollectAndCount(m.txDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.insufficient.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogReloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogReloads.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	m := New(Options{GoCollector: true})
	m.InsufficientFunds(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `wish_insufficient_funds_total{banner="5"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
