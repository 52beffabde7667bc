package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeguard/internal/config"
	"tradeguard/internal/domain"
	"tradeguard/internal/risk"
	"tradeguard/internal/risk/filters"
	"tradeguard/internal/risk/portfoliostate"
)

type stubBroker struct {
	updates chan domain.OrderUpdate
}

func (s *stubBroker) Execute(ctx context.Context, order domain.Order) error { return nil }
func (s *stubBroker) GetPortfolio(ctx context.Context) (domain.Portfolio, error) {
	return domain.Portfolio{
		Cash:      decimal.RequireFromString("10000"),
		Positions: map[string]domain.Position{},
	}, nil
}
func (s *stubBroker) GetOpenOrders(ctx context.Context) ([]domain.Order, error)  { return nil, nil }
func (s *stubBroker) GetTodayOrders(ctx context.Context) ([]domain.Order, error) { return nil, nil }
func (s *stubBroker) CancelOrder(ctx context.Context, orderID string) error      { return nil }
func (s *stubBroker) CancelAllOrders(ctx context.Context) error                  { return nil }
func (s *stubBroker) SubscribeOrderUpdates(ctx context.Context) (<-chan domain.OrderUpdate, error) {
	return s.updates, nil
}

func startServer(t *testing.T) *Server {
	t.Helper()
	broker := &stubBroker{updates: make(chan domain.OrderUpdate)}
	cfg := config.RiskConfig{
		MaxPositionSizePct:       1.0,
		MaxDailyLossPct:          0.02,
		MaxDrawdownPct:           0.05,
		ConsecutiveLossLimit:     3,
		ConsecutiveLossScope:     config.LossScopeGlobal,
		MaxSectorExposurePct:     1.0,
		ValuationIntervalSeconds: 60,
		PendingOrderTTLSeconds:   300,
		SnapshotStalenessMs:      3_600_000,
		SpreadStalenessMs:        10_000,
		BrokerTimeoutMs:          2000,
		ProposalBuffer:           16,
	}
	manager, err := risk.NewManager(cfg, config.SizingConfig{StaticQuantity: 1}, risk.Deps{
		States: portfoliostate.NewManager(broker, cfg.SnapshotStaleness(), cfg.BrokerTimeout()),
		Exec:   broker,
		Chain:  filters.NewChain(nil, nil, nil),
	})
	require.NoError(t, err)
	require.NoError(t, manager.Start(context.Background()))
	t.Cleanup(manager.Stop)

	srv, err := NewServer(":0", manager)
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	srv := startServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	srv := startServer(t)
	rec, body := doJSON(t, srv, http.MethodGet, "/api/risk/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["halted"])
}

func TestHaltAndResetEndpoints(t *testing.T) {
	srv := startServer(t)

	rec, body := doJSON(t, srv, http.MethodPost, "/api/risk/halt", `{"reason":"ops drill"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "halted", body["status"])

	assert.Eventually(t, func() bool {
		_, status := doJSON(t, srv, http.MethodGet, "/api/risk/status", "")
		return status["halted"] == true && status["halt_reason"] == "ops drill"
	}, 2*time.Second, 10*time.Millisecond)

	rec, body = doJSON(t, srv, http.MethodPost, "/api/risk/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "normal", body["status"])

	_, status := doJSON(t, srv, http.MethodGet, "/api/risk/status", "")
	assert.Equal(t, false, status["halted"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := startServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tradeguard_")
}

func TestNewServerRequiresManager(t *testing.T) {
	_, err := NewServer(":0", nil)
	assert.Error(t, err)
}
