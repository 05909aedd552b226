// Game and account read endpoints.
//
//   - GET  /game                        cached game data plus projections
//   - GET  /holders                     top holders with podium injection
//   - GET  /leaderboard                 top hunters and holders
//   - GET  /users/{address}/balances    cached balances of one address
//   - POST /users/{address}/invalidate  drop caches and refetch balances
package handlers

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/cache"
	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/services"
)

// HoldersResponse is the holders panel. Stale is set when the backend failed
// and the last good list is served.
type HoldersResponse struct {
	Holders []services.DisplayHolder `json:"holders"`
	Stale   bool                     `json:"stale,omitempty"`
}

// LeaderboardResponse wraps the leaderboard with a staleness flag.
type LeaderboardResponse struct {
	domain.Leaderboard
	Stale bool `json:"stale,omitempty"`
}

// GetGame godoc
// @ID          getGame
// @Summary     Game state
// @Description Returns the cached game data and derived values (prize pools, countdown, progress). Fallback is true until the first successful fetch.
// @Tags        Game
// @Produce     json
// @Success     200  {object}  services.GameView
// @Failure     503  {object}  handlers.ErrorResponse  "Game store not configured"
// @Router      /game [get]
func (h *Handlers) GetGame(c *gin.Context) {
	if h.d.Game == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "game data unavailable")
		return
	}
	ok(c, http.StatusOK, services.ProjectGame(h.d.Game.Snapshot(), h.d.Now()))
}

// GetHolders godoc
// @ID          getHolders
// @Summary     Top holders
// @Description Returns up to five holders with second and third place injected at positions two and three.
// @Tags        Game
// @Produce     json
// @Success     200  {object}  handlers.HoldersResponse
// @Failure     502  {object}  handlers.ErrorResponse  "Backend unavailable and nothing cached"
// @Router      /holders [get]
func (h *Handlers) GetHolders(c *gin.Context) {
	if h.d.Holders == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "holders unavailable")
		return
	}
	list, err := h.d.Holders.Holders(c.Request.Context())
	if err != nil && list == nil {
		fail(c, http.StatusBadGateway, ErrCodeBackendUnavailable, "holders unavailable")
		return
	}
	var game domain.GameData
	if h.d.Game != nil {
		game = h.d.Game.Snapshot().Data
	}
	ok(c, http.StatusOK, HoldersResponse{Holders: services.DisplayHolders(list, game), Stale: err != nil})
}

// GetLeaderboard godoc
// @ID          getLeaderboard
// @Summary     Leaderboard
// @Tags        Game
// @Produce     json
// @Success     200  {object}  handlers.LeaderboardResponse
// @Failure     502  {object}  handlers.ErrorResponse  "Backend unavailable and nothing cached"
// @Router      /leaderboard [get]
func (h *Handlers) GetLeaderboard(c *gin.Context) {
	if h.d.Holders == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "leaderboard unavailable")
		return
	}
	lb, err := h.d.Holders.Leaderboard(c.Request.Context())
	if err != nil && lb.TopHunters == nil && lb.TopHolders == nil {
		fail(c, http.StatusBadGateway, ErrCodeBackendUnavailable, "leaderboard unavailable")
		return
	}
	ok(c, http.StatusOK, LeaderboardResponse{Leaderboard: lb, Stale: err != nil})
}

// balanceStore resolves the store for the :address path parameter, writing
// the error response itself when it cannot.
func (h *Handlers) balanceStore(c *gin.Context) (BalanceStore, bool) {
	addr := strings.TrimSpace(c.Param("address"))
	if !common.IsHexAddress(addr) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address must be a 0x-prefixed hex address")
		return nil, false
	}
	if h.d.Balances == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "balances unavailable")
		return nil, false
	}
	return h.d.Balances(strings.ToLower(addr)), true
}

// GetBalances godoc
// @ID          getBalances
// @Summary     Cached balances
// @Description Returns the shared balance snapshot of an address, fetching it on first use.
// @Tags        Users
// @Produce     json
// @Param       address  path  string  true  "Wallet address"  example(0x1234567890abcdef1234567890abcdef12345678)
// @Success     200  {object}  cache.UserSnapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad address"
// @Failure     502  {object}  handlers.ErrorResponse  "Backend unavailable"
// @Router      /users/{address}/balances [get]
func (h *Handlers) GetBalances(c *gin.Context) {
	store, found := h.balanceStore(c)
	if !found {
		return
	}
	snap := store.Snapshot()
	if !snap.Loaded {
		var err error
		if snap, err = store.Refresh(c.Request.Context()); err != nil && !snap.Loaded {
			fail(c, http.StatusBadGateway, ErrCodeBackendUnavailable, "balances unavailable")
			return
		}
	}
	ok(c, http.StatusOK, snap)
}

// InvalidateBalances godoc
// @ID          invalidateBalances
// @Summary     Refresh balances
// @Description Drops the persisted and backend caches for an address and refetches.
// @Tags        Users
// @Produce     json
// @Param       address  path  string  true  "Wallet address"
// @Success     200  {object}  cache.UserSnapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad address"
// @Failure     502  {object}  handlers.ErrorResponse  "Refetch failed"
// @Router      /users/{address}/invalidate [post]
func (h *Handlers) InvalidateBalances(c *gin.Context) {
	store, found := h.balanceStore(c)
	if !found {
		return
	}
	if err := store.Invalidate(c.Request.Context()); err != nil {
		fail(c, http.StatusBadGateway, ErrCodeBackendUnavailable, "balance refetch failed")
		return
	}
	ok(c, http.StatusOK, store.Snapshot())
}

var _ BalanceStore = (*cache.UserStore)(nil)
