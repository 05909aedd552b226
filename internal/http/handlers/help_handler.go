package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/search"
	"github.com/tbourn/punkhunt/internal/utils"
)

// HelpResponse lists the help paragraphs matching a question.
type HelpResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// SearchHelp godoc
// @ID          searchHelp
// @Summary     Search the help text
// @Tags        Help
// @Produce     json
// @Param       q  query  string  true   "Question"  example(can I shoot my own ducks)
// @Param       k  query  int     false  "Max results"  minimum(1) maximum(10) default(3)
// @Success     200  {object}  handlers.HelpResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing q"
// @Router      /help [get]
func (h *Handlers) SearchHelp(c *gin.Context) {
	if h.d.Help == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "help unavailable")
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	res := []search.Result{}
	for _, r := range h.d.Help.TopK(q, utils.LimitParam(c.Query("k"), 3, 10)) {
		if r.Score >= h.d.HelpThreshold {
			res = append(res, r)
		}
	}
	ok(c, http.StatusOK, HelpResponse{Query: q, Results: res})
}
