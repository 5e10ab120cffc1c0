package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/config"
	"grandexchange-api/internal/handler"
	"grandexchange-api/internal/inventory"
	"grandexchange-api/internal/middleware"
	"grandexchange-api/internal/model"
	"grandexchange-api/internal/repository"
	"grandexchange-api/internal/router"
	"grandexchange-api/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "server-key"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	http   http.Handler
	tokens *service.TokenService
	market *service.MarketService
	cache  cache.Cache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	memCache := cache.NewMemoryCache()
	t.Cleanup(func() { memCache.Close() })

	registry := inventory.NewRegistry(50)
	history := service.NewHistoryService(registry, nil)
	bank := service.NewBankService(registry, nil)
	market := service.NewMarketService(repository.NewInMemoryOfferRepository(), registry, history, nil,
		bank, memCache, config.MarketConfig{
			CollectionPageSize: 2,
			SellSlots:          10,
			BuySlots:           3,
			MinPrice:           1,
			MaxPrice:           1_000_000,
			MaxQuantity:        1000,
		}, 0)
	analytics := service.NewMarketAnalytics(0)
	audit := service.NewAuditLog(0, true)
	market.SetInsights(analytics, audit)
	collection := service.NewCollectionService(registry, nil, 2)
	tokens := service.NewTokenService(memCache, 0)

	r := router.New(router.Config{
		Handler:           handler.New("grandexchange-api", "test"),
		MarketHandler:     handler.NewMarketHandler(market),
		CollectionHandler: handler.NewCollectionHandler(collection),
		BankHandler:       handler.NewBankHandler(bank),
		HistoryHandler:    handler.NewHistoryHandler(history),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Market:    market,
			Analytics: analytics,
			Audit:     audit,
			StoreType: "memory",
		}),
		AuthHandler:       handler.NewAuthHandler(tokens),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			TokenService: tokens,
			APIKeys:      []string{testAPIKey},
		}),
	})
	return &testServer{t: t, http: r, tokens: tokens, market: market, cache: memCache}
}

// deposit funds a player's bank as the game server.
func (s *testServer) deposit(playerID int64, item string, qty int) {
	s.t.Helper()
	code, env := s.do(http.MethodPost, playerPath(playerID, "/bank/deposit"), "", map[string]any{
		"item_string_id": item, "quantity": qty,
	})
	require.Equal(s.t, http.StatusOK, code, env.Error)
}

// do sends a request as the game server, or as a player when token is set.
func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Token", token)
	} else {
		req.Header.Set("X-API-Key", testAPIKey)
	}

	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func playerPath(id int64, rest string) string {
	return "/api/v1/players/" + strconv.FormatInt(id, 10) + rest
}

func TestStatusIsPublic(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, playerPath(1, "/offers"), nil)
	rec = httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTradeFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.deposit(1, "ironbar", 5)
	s.deposit(2, model.CoinItemID, 36)

	code, env := s.do(http.MethodPost, playerPath(1, "/sell-offers"), "", map[string]any{
		"slot_index": 0, "item_string_id": "ironbar", "quantity": 5, "price_per_item": 10,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	offer := decode[model.SellOffer](t, env)
	assert.Equal(t, model.OfferDraft, offer.State)

	code, _ = s.do(http.MethodPost, playerPath(1, "/sell-offers/"+strconv.FormatInt(offer.OfferID, 10)+"/enable"), "", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, playerPath(2, "/buy-orders"), "", map[string]any{"slot_index": 0})
	require.Equal(t, http.StatusCreated, code)
	order := decode[model.BuyOrder](t, env)
	orderPath := playerPath(2, "/buy-orders/"+strconv.FormatInt(order.OrderID, 10))

	code, _ = s.do(http.MethodPut, orderPath, "", map[string]any{
		"item_string_id": "ironbar", "quantity": 3, "price_per_item": 12,
	})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, orderPath+"/enable", "", nil)
	require.Equal(t, http.StatusOK, code)
	result := decode[handler.TradeResult[model.BuyOrder]](t, env)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, 10, result.Trades[0].PricePerItem)
	assert.Equal(t, model.OrderCompleted, result.Record.State)

	// purchase plus the (12-10)*3 refund, two per page
	code, env = s.do(http.MethodGet, playerPath(2, "/collection?page=0"), "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(2), env.Meta.Total)
	assert.Equal(t, 1, env.Meta.TotalPages)

	code, env = s.do(http.MethodPost, playerPath(2, "/collection/claim-all"), "", nil)
	require.Equal(t, http.StatusOK, code)
	claimed := decode[[]model.CollectionItem](t, env)
	require.Len(t, claimed, 2)
	assert.Equal(t, "ironbar", claimed[0].ItemStringID)
	assert.Equal(t, model.CoinItemID, claimed[1].ItemStringID)
	assert.Equal(t, 6, claimed[1].Quantity)

	code, env = s.do(http.MethodGet, playerPath(1, "/history"), "", nil)
	require.Equal(t, http.StatusOK, code)
	snap := decode[model.HistoryTabSnapshot](t, env)
	require.Len(t, snap.Entries, 1)
	assert.True(t, snap.Entries[0].IsSale)

	code, env = s.do(http.MethodPost, playerPath(1, "/history/ack"), "", map[string]any{"timestamp": snap.LatestEntryTimestamp})
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, decode[model.HistoryBadge](t, env).UnseenCount)

	code, env = s.do(http.MethodGet, "/api/v1/market/items/ironbar/depth", "", nil)
	require.Equal(t, http.StatusOK, code)
	depth := decode[model.MarketDepth](t, env)
	assert.Equal(t, 10, depth.BestAsk)

	code, env = s.do(http.MethodGet, "/api/v1/market/items/ironbar/summary", "", nil)
	require.Equal(t, http.StatusOK, code)
	summary := decode[model.MarketSummary](t, env)
	assert.Equal(t, 1, summary.TradeCount)
	assert.Equal(t, 10, summary.GuidePrice)

	// the seller banks the proceeds of 3 at 10
	code, _ = s.do(http.MethodPost, playerPath(1, "/collection/claim-all?to=bank"), "", nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodGet, playerPath(1, "/bank"), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]int64{model.CoinItemID: 30}, decode[service.BankBalance](t, env).Balances)

	code, env = s.do(http.MethodGet, "/api/v1/admin/audit/recent", "", nil)
	require.Equal(t, http.StatusOK, code)
	recent := decode[[]model.AuditEntry](t, env)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(2), recent[0].BuyerID)
}

func TestBankOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.deposit(1, model.CoinItemID, 100)

	code, env := s.do(http.MethodPost, playerPath(1, "/bank/withdraw"), "", map[string]any{
		"item_string_id": model.CoinItemID, "quantity": 101,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	code, env = s.do(http.MethodPost, playerPath(1, "/bank/withdraw"), "", map[string]any{
		"item_string_id": model.CoinItemID, "quantity": 40,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(60), decode[handler.BankTransferResult](t, env).Balance)

	// a sell offer needs the items in the bank first
	code, _ = s.do(http.MethodPost, playerPath(1, "/sell-offers"), "", map[string]any{
		"item_string_id": "ironbar", "quantity": 1, "price_per_item": 5,
	})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(http.MethodPost, "/api/v1/auth/token", "", map[string]any{"player_id": 1})
	require.Equal(t, http.StatusOK, code)
	token := decode[handler.TokenResponse](t, env).Token

	code, env = s.do(http.MethodGet, playerPath(1, "/bank"), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(60), decode[service.BankBalance](t, env).Balances[model.CoinItemID])

	code, _ = s.do(http.MethodPost, playerPath(1, "/bank/deposit"), token, map[string]any{
		"item_string_id": model.CoinItemID, "quantity": 1_000_000,
	})
	assert.Equal(t, http.StatusForbidden, code, "players cannot fund their own bank")

	code, _ = s.do(http.MethodGet, "/api/v1/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, code, "players cannot reach admin routes")
}

func TestCreationCooldownOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.market.SetRateLimiter(service.NewRateLimiter(s.cache, time.Minute))

	code, _ := s.do(http.MethodPost, playerPath(1, "/buy-orders"), "", map[string]any{"slot_index": 0})
	require.Equal(t, http.StatusCreated, code)

	req := httptest.NewRequest(http.MethodPost, playerPath(1, "/buy-orders"), strings.NewReader(`{"slot_index": 1}`))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	s.http.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	code, _ = s.do(http.MethodDelete, "/api/v1/admin/cooldowns/1", "", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, playerPath(1, "/buy-orders"), "", map[string]any{"slot_index": 1})
	assert.Equal(t, http.StatusCreated, code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"schema violation", http.MethodPost, playerPath(1, "/sell-offers"), map[string]any{"item_string_id": "ironbar"}, http.StatusBadRequest},
		{"price above limit", http.MethodPost, playerPath(1, "/sell-offers"), map[string]any{
			"item_string_id": "ironbar", "quantity": 1, "price_per_item": 2_000_000}, http.StatusBadRequest},
		{"slot out of range", http.MethodPost, playerPath(1, "/buy-orders"), map[string]any{"slot_index": 7}, http.StatusConflict},
		{"unknown offer", http.MethodPost, playerPath(1, "/sell-offers/42/enable"), nil, http.StatusNotFound},
		{"unknown action", http.MethodPost, playerPath(1, "/sell-offers/42/explode"), nil, http.StatusNotFound},
		{"bad player id", http.MethodGet, "/api/v1/players/abc/offers", nil, http.StatusBadRequest},
		{"ack without history", http.MethodPost, playerPath(9, "/history/ack"), map[string]any{"timestamp": 1}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(tt.method, tt.path, "", tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
		})
	}
}

func TestPlayerTokenScope(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/auth/token", "", map[string]any{"player_id": 1, "player_name": "alice"})
	require.Equal(t, http.StatusOK, code)
	token := decode[handler.TokenResponse](t, env).Token
	require.NotEmpty(t, token)

	code, _ = s.do(http.MethodGet, playerPath(1, "/offers"), token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, playerPath(2, "/offers"), token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, playerPath(1, "/collection"), token, map[string]any{
		"item_string_id": "gold", "quantity": 1, "source": "gift",
	})
	assert.Equal(t, http.StatusForbidden, code, "players cannot fill their own box")

	code, _ = s.do(http.MethodPost, "/api/v1/auth/token", token, map[string]any{"player_id": 1})
	assert.Equal(t, http.StatusForbidden, code, "players cannot mint tokens")

	code, _ = s.do(http.MethodPost, "/api/v1/auth/revoke", token, nil)
	require.Equal(t, http.StatusOK, code)

	_, err := s.tokens.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestCollectionRemembersPage(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 5; i++ {
		code, _ := s.do(http.MethodPost, playerPath(3, "/collection"), "", map[string]any{
			"item_string_id": "logs", "quantity": i + 1, "source": "gift",
		})
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := s.do(http.MethodGet, playerPath(3, "/collection?page=9"), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Meta.Page, "out of range pages clamp to the last")
	assert.Equal(t, 3, env.Meta.TotalPages)

	code, env = s.do(http.MethodGet, playerPath(3, "/collection"), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Meta.Page)

	code, env = s.do(http.MethodPost, playerPath(3, "/collection/claim"), "", map[string]any{"index": 4})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, decode[model.CollectionItem](t, env).Quantity)

	code, _ = s.do(http.MethodPost, playerPath(3, "/collection/claim"), "", map[string]any{"index": 4})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/api/v1/admin/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[map[string]any](t, env)
	assert.Equal(t, "memory", stats["store_type"])
	assert.Contains(t, stats, "audit")
	assert.Contains(t, stats, "rate_limit")

	code, env = s.do(http.MethodGet, "/api/v1/admin/audit/suspicious", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]model.SuspiciousTrade](t, env))

	code, env = s.do(http.MethodGet, "/api/v1/admin/audit/players/7", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(7), decode[handler.PlayerAudit](t, env).Stats.PlayerID)

	code, _ = s.do(http.MethodGet, "/api/v1/admin/audit/recent?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/v1/admin/orderbook", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/api/v1/admin/expire", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, decode[service.ExpireResult](t, env).SellOffersExpired)
}
