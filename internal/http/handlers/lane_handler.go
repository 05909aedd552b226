// Transaction lane endpoints.
//
//   - GET  /lanes                 every lane with its button state
//   - GET  /lanes/{lane}          one lane
//   - POST /lanes/{lane}/submit   start an attempt (Idempotency-Key aware)
//   - POST /lanes/{lane}/reset    return the lane to idle
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/http/middleware"
	"github.com/tbourn/punkhunt/internal/repo"
	"github.com/tbourn/punkhunt/internal/services"
	"github.com/tbourn/punkhunt/internal/utils"
)

// SubmitRequest is the JSON payload of a lane submission.
type SubmitRequest struct {
	// Amount is the number of ducks or zappers to mint, or zappers to fire.
	Amount int64 `json:"amount" example:"3"`
}

// SubmitResponse carries the attempt a submission started. Replayed is set
// when an Idempotency-Key matched an earlier submission.
type SubmitResponse struct {
	Attempt  domain.TransactionAttempt `json:"attempt"`
	Replayed bool                      `json:"replayed,omitempty"`
}

// LaneView is a lane's attempt plus the label its action button shows.
type LaneView struct {
	Attempt  domain.TransactionAttempt `json:"attempt"`
	Label    string                    `json:"label"`
	Disabled bool                      `json:"disabled"`
	Total    string                    `json:"total,omitempty"`
}

// laneParam parses :lane, writing a 404 when it names no lane.
func (h *Handlers) laneParam(c *gin.Context) (domain.Lane, bool) {
	lane, err := domain.ParseLane(c.Param("lane"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeUnknownLane, err.Error())
		return "", false
	}
	if h.d.Lanes == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "no wallet configured")
		return "", false
	}
	return lane, true
}

// walletAddress is the lower-cased address idempotency records are keyed by.
func (h *Handlers) walletAddress(c *gin.Context) string {
	if a := middleware.AddressFrom(c); a != "" {
		return a
	}
	return strings.ToLower(h.d.Lanes.Address())
}

func (h *Handlers) laneView(lane domain.Lane, att domain.TransactionAttempt, amount int64) LaneView {
	in := services.ButtonInput{
		Lane:      lane,
		Attempt:   att,
		Connected: h.d.Lanes.Address() != "",
		Amount:    amount,
		Now:       h.d.Now(),
	}
	var price string
	if h.d.Game != nil {
		in.Game = h.d.Game.Snapshot().Data
		switch lane {
		case domain.LaneMintDucks:
			price = in.Game.DuckPrice
		case domain.LaneMintZappers:
			price = in.Game.ZapperPrice
		}
	}
	if in.Connected && h.d.Balances != nil {
		in.Zappers = h.d.Balances(strings.ToLower(h.d.Lanes.Address())).Snapshot().Balances.ZapperBalance
	}
	label, disabled := services.ButtonLabel(in)
	v := LaneView{Attempt: att, Label: label, Disabled: disabled}
	if price != "" && amount > 0 {
		v.Total = services.PriceTotal(price, amount)
	}
	return v
}

// ListLanes godoc
// @ID          listLanes
// @Summary     All lanes
// @Tags        Lanes
// @Produce     json
// @Param       amount  query  int  false  "Amount used for labels"  default(1)
// @Success     200  {array}   handlers.LaneView
// @Failure     503  {object}  handlers.ErrorResponse  "No wallet configured"
// @Router      /lanes [get]
func (h *Handlers) ListLanes(c *gin.Context) {
	if h.d.Lanes == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "no wallet configured")
		return
	}
	amount := int64(utils.AtoiDefault(c.Query("amount"), 1))
	out := make([]LaneView, 0, len(domain.Lanes))
	for _, att := range h.d.Lanes.Snapshots() {
		out = append(out, h.laneView(att.Lane, att, amount))
	}
	ok(c, http.StatusOK, out)
}

// GetLane godoc
// @ID          getLane
// @Summary     One lane
// @Tags        Lanes
// @Produce     json
// @Param       lane    path   string  true   "Lane"  Enums(mint-ducks, mint-zappers, shoot)
// @Param       amount  query  int     false  "Amount used for the label"  default(1)
// @Success     200  {object}  handlers.LaneView
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown lane"
// @Router      /lanes/{lane} [get]
func (h *Handlers) GetLane(c *gin.Context) {
	lane, found := h.laneParam(c)
	if !found {
		return
	}
	att, err := h.d.Lanes.Snapshot(lane)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, h.laneView(lane, att, int64(utils.AtoiDefault(c.Query("amount"), 1))))
}

// SubmitLane godoc
// @ID          submitLane
// @Summary     Start a transaction
// @Description Validates against the cached game and balance data and starts an attempt. Progress is streamed on /events. With an Idempotency-Key, a retry returns the original attempt instead of starting another.
// @Tags        Lanes
// @Accept      json
// @Produce     json
// @Param       lane             path    string  true   "Lane"  Enums(mint-ducks, mint-zappers, shoot)
// @Param       Idempotency-Key  header  string  false  "Retry key"  example(5f1c7c2e)
// @Param       body             body    handlers.SubmitRequest  true  "Amount"
// @Success     202  {object}  handlers.SubmitResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown lane"
// @Failure     409  {object}  handlers.ErrorResponse  "Transaction already in flight"
// @Router      /lanes/{lane}/submit [post]
func (h *Handlers) SubmitLane(c *gin.Context) {
	lane, found := h.laneParam(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	key, hasKey := middleware.GetIdempotencyKey(c)
	hasKey = hasKey && h.d.Idempotency != nil

	if _, replay := middleware.ReplayedAttempt(c); replay && hasKey {
		if h.replay(c, lane, key) {
			return
		}
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	att, err := h.d.Lanes.Submit(ctx, lane, req.Amount)
	if err != nil {
		failErr(c, err)
		return
	}

	if hasKey {
		_, err := h.d.Idempotency.Create(ctx, h.walletAddress(c), string(lane), key, att.Seq, http.StatusAccepted)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("record idempotency key failed")
		}
	}
	ok(c, http.StatusAccepted, SubmitResponse{Attempt: att})
}

// replay answers a retried submission from its idempotency record. It
// reports false when the record vanished, letting the caller submit anew.
func (h *Handlers) replay(c *gin.Context, lane domain.Lane, key string) bool {
	ctx := c.Request.Context()
	rec, err := h.d.Idempotency.Get(ctx, h.walletAddress(c), string(lane), key, h.d.Now().UTC())
	if err != nil {
		return false
	}

	att := domain.TransactionAttempt{Lane: lane, Seq: rec.AttemptSeq, ID: rec.AttemptID}
	if live, err := h.d.Lanes.Snapshot(lane); err == nil && live.Seq == rec.AttemptSeq {
		att = live
	}
	if rec.AttemptID == "" && att.ID != "" {
		if err := h.d.Idempotency.SetAttemptID(ctx, rec.ID, att.ID); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("backfill idempotency attempt id failed")
		}
	}
	c.Header("Idempotent-Replay", "true")
	ok(c, rec.Status, SubmitResponse{Attempt: att, Replayed: true})
	return true
}

// ResetLane godoc
// @ID          resetLane
// @Summary     Reset a lane
// @Description Returns the lane to idle. An in-flight attempt is abandoned; its later wallet results are ignored.
// @Tags        Lanes
// @Produce     json
// @Param       lane  path  string  true  "Lane"  Enums(mint-ducks, mint-zappers, shoot)
// @Success     200  {object}  domain.TransactionAttempt
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown lane"
// @Router      /lanes/{lane}/reset [post]
func (h *Handlers) ResetLane(c *gin.Context) {
	lane, found := h.laneParam(c)
	if !found {
		return
	}
	att, err := h.d.Lanes.Reset(lane)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, att)
}
