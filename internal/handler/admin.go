package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"grandexchange-api/internal/cache"
	"grandexchange-api/internal/model"
	"grandexchange-api/internal/repository"
	"grandexchange-api/internal/service"
	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/response"
)

// defaultAuditLimit is how many audit entries a listing returns without ?limit.
const defaultAuditLimit = 50

// ExpiryRunner runs an expiry pass on demand.
type ExpiryRunner interface {
	RunNow() service.ExpireResult
}

// ConnectionCounter reports open history feed connections.
type ConnectionCounter interface {
	Len() int
}

// AdminHandler handles operator requests.
type AdminHandler struct {
	buffer      cache.StateBuffer
	store       repository.MarketStore
	market      *service.MarketService
	expiry      ExpiryRunner
	connections ConnectionCounter
	analytics   *service.MarketAnalytics
	audit       *service.AuditLog
	limiter     *service.RateLimiter
	storeType   string // sqlite, postgres, mysql or memory
	startTime   time.Time
}

// AdminConfig holds the dependencies of the admin handler. Nil fields are
// reported as not configured.
type AdminConfig struct {
	Buffer      cache.StateBuffer
	Store       repository.MarketStore
	Market      *service.MarketService
	Expiry      ExpiryRunner
	Connections ConnectionCounter
	Analytics   *service.MarketAnalytics
	Audit       *service.AuditLog
	Limiter     *service.RateLimiter
	StoreType   string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{
		buffer:      cfg.Buffer,
		store:       cfg.Store,
		market:      cfg.Market,
		expiry:      cfg.Expiry,
		connections: cfg.Connections,
		analytics:   cfg.Analytics,
		audit:       cfg.Audit,
		limiter:     cfg.Limiter,
		storeType:   cfg.StoreType,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.market != nil {
		stats["market"] = h.market.Stats()
	}
	if h.connections != nil {
		stats["history_connections"] = h.connections.Len()
	}
	stats["analytics"] = h.analytics.Stats()
	stats["audit"] = h.audit.Stats()
	stats["rate_limit"] = h.limiter.Stats()

	if h.buffer != nil {
		if count, err := h.buffer.Count(ctx); err == nil {
			stats["state_buffer"] = map[string]interface{}{
				"pending_players": count,
				"status":          "connected",
			}
		} else {
			stats["state_buffer"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["state_buffer"] = map[string]interface{}{"status": "not_configured"}
	}

	if h.store != nil {
		if storeStats, err := h.store.GetStats(ctx); err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["store"] = map[string]interface{}{"status": "not_configured"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// GetOrderBook handles GET /api/v1/admin/orderbook
func (h *AdminHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.market.OrderBook(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, book)
}

// RunExpiry handles POST /api/v1/admin/expire
func (h *AdminHandler) RunExpiry(w http.ResponseWriter, r *http.Request) {
	if h.expiry != nil {
		response.OK(w, h.expiry.RunNow())
		return
	}
	response.OK(w, h.market.ExpireStale(r.Context()))
}

// GetRecentTrades handles GET /api/v1/admin/audit/recent?limit=N[&item=ID]
func (h *AdminHandler) GetRecentTrades(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		response.OK(w, []model.AuditEntry{})
		return
	}
	limit, err := auditLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if item := r.URL.Query().Get("item"); item != "" {
		response.OK(w, nonNil(h.audit.RecentForItem(item, limit)))
		return
	}
	response.OK(w, nonNil(h.audit.Recent(limit)))
}

// GetSuspiciousTrades handles GET /api/v1/admin/audit/suspicious
func (h *AdminHandler) GetSuspiciousTrades(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		response.OK(w, []model.SuspiciousTrade{})
		return
	}
	response.OK(w, h.audit.SuspiciousTrades())
}

// PlayerAudit is a player's audited trading.
type PlayerAudit struct {
	Stats  model.PlayerTradeStats `json:"stats"`
	Trades []model.AuditEntry     `json:"trades"`
}

// GetPlayerAudit handles GET /api/v1/admin/audit/players/{player_id}?limit=N
func (h *AdminHandler) GetPlayerAudit(w http.ResponseWriter, r *http.Request) {
	playerID, err := int64Param(r, "player_id")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := auditLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	audit := PlayerAudit{Stats: model.PlayerTradeStats{PlayerID: playerID}, Trades: []model.AuditEntry{}}
	if h.audit != nil {
		audit.Stats = h.audit.PlayerStats(playerID)
		audit.Trades = nonNil(h.audit.RecentForPlayer(playerID, limit))
	}
	response.OK(w, audit)
}

// ClearCooldowns handles DELETE /api/v1/admin/cooldowns/{player_id}
func (h *AdminHandler) ClearCooldowns(w http.ResponseWriter, r *http.Request) {
	playerID, err := int64Param(r, "player_id")
	if err != nil {
		writeError(w, err)
		return
	}
	h.limiter.Clear(r.Context(), playerID)
	response.OK(w, map[string]int64{"player_id": playerID})
}

func auditLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultAuditLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apierror.BadRequest("limit must be a positive integer")
	}
	return limit, nil
}
