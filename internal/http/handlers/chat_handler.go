// Trollbox endpoints.
//
//   - GET  /chat   recent messages, oldest first
//   - POST /chat   send a message as the connected wallet
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/http/middleware"
	"github.com/tbourn/punkhunt/internal/utils"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 200
)

// SendChatRequest is the JSON payload of POST /chat.
type SendChatRequest struct {
	// Message is trimmed and clipped to 200 characters.
	Message string `json:"message" example:"gm hunters"`
}

// ChatHistoryResponse is the trollbox page.
type ChatHistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
	// Closed is true once the game ended; sends are rejected.
	Closed bool `json:"closed"`
}

// GetChat godoc
// @ID          getChat
// @Summary     Chat history
// @Tags        Chat
// @Produce     json
// @Param       limit  query  int  false  "Newest N messages"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  handlers.ChatHistoryResponse
// @Router      /chat [get]
func (h *Handlers) GetChat(c *gin.Context) {
	if h.d.Chat == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "chat unavailable")
		return
	}
	limit := utils.LimitParam(c.Query("limit"), defaultChatLimit, maxChatLimit)
	msgs := h.d.Chat.History(limit)
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	ok(c, http.StatusOK, ChatHistoryResponse{Messages: msgs, Closed: h.d.Chat.Closed()})
}

// SendChat godoc
// @ID          sendChat
// @Summary     Send a chat message
// @Description Emits the message over the realtime channel. It appears in the history once the server broadcasts it back.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SendChatRequest  true  "Message"
// @Success     202  {object}  domain.ChatMessage
// @Failure     400  {object}  handlers.ErrorResponse  "Empty message or no wallet"
// @Failure     409  {object}  handlers.ErrorResponse  "Game ended"
// @Failure     503  {object}  handlers.ErrorResponse  "Realtime channel down"
// @Router      /chat [post]
func (h *Handlers) SendChat(c *gin.Context) {
	if h.d.Chat == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "chat unavailable")
		return
	}
	var req SendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	addr := middleware.AddressFrom(c)
	if addr == "" && h.d.Lanes != nil {
		addr = strings.ToLower(h.d.Lanes.Address())
	}
	msg, err := h.d.Chat.Send(c.Request.Context(), addr, req.Message)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusAccepted, msg)
}
