package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/utils"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// LaneHistory summarizes the reconciled transactions of one lane.
type LaneHistory struct {
	Lane       domain.Lane `json:"lane"`
	Reconciled int64       `json:"reconciled"`
	LastAt     *time.Time  `json:"last_at,omitempty"`
}

// HistoryEntry is one reconciled transaction.
type HistoryEntry struct {
	Hash      string      `json:"hash"`
	Lane      domain.Lane `json:"lane"`
	Amount    int64       `json:"amount"`
	CreatedAt time.Time   `json:"created_at"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Lanes        []LaneHistory  `json:"lanes"`
	Transactions []HistoryEntry `json:"transactions"`
}

// GetHistory godoc
// @ID          getHistory
// @Summary     Reconciled transactions
// @Description Per-lane counts and the most recent transactions whose outcomes were reconciled.
// @Tags        Lanes
// @Produce     json
// @Param       limit  query  int  false  "Max transactions (1..100)"  default(20)
// @Success     200  {object}  handlers.HistoryResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /history [get]
func (h *Handlers) GetHistory(c *gin.Context) {
	if h.d.History == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "history unavailable")
		return
	}
	ctx := c.Request.Context()

	resp := HistoryResponse{
		Lanes:        make([]LaneHistory, 0, len(domain.Lanes)),
		Transactions: []HistoryEntry{},
	}
	for _, lane := range domain.Lanes {
		n, last, err := h.d.History.LaneStats(ctx, lane)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read history")
			return
		}
		resp.Lanes = append(resp.Lanes, LaneHistory{Lane: lane, Reconciled: n, LastAt: last})
	}

	recent, err := h.d.History.Recent(ctx, utils.LimitParam(c.Query("limit"), defaultHistoryLimit, maxHistoryLimit))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read history")
		return
	}
	for _, tx := range recent {
		resp.Transactions = append(resp.Transactions, HistoryEntry{
			Hash:      tx.Hash,
			Lane:      domain.Lane(tx.Lane),
			Amount:    tx.Amount,
			CreatedAt: tx.CreatedAt,
		})
	}
	ok(c, http.StatusOK, resp)
}
