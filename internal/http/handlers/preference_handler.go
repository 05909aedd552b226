package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SoundPreferenceBody is the sound toggle.
type SoundPreferenceBody struct {
	Enabled *bool `json:"enabled" example:"true"`
}

// GetSound godoc
// @ID          getSoundPreference
// @Summary     Sound toggle
// @Tags        Preferences
// @Produce     json
// @Success     200  {object}  handlers.SoundPreferenceBody
// @Router      /preferences/sound [get]
func (h *Handlers) GetSound(c *gin.Context) {
	if h.d.Sound == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "sound unavailable")
		return
	}
	on := h.d.Sound.Enabled()
	ok(c, http.StatusOK, SoundPreferenceBody{Enabled: &on})
}

// PutSound godoc
// @ID          putSoundPreference
// @Summary     Set the sound toggle
// @Description Persists the toggle; muted cues are not published on the event stream.
// @Tags        Preferences
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SoundPreferenceBody  true  "Toggle"
// @Success     200  {object}  handlers.SoundPreferenceBody
// @Failure     400  {object}  handlers.ErrorResponse  "Missing enabled"
// @Router      /preferences/sound [put]
func (h *Handlers) PutSound(c *gin.Context) {
	if h.d.Sound == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "sound unavailable")
		return
	}
	var body SoundPreferenceBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Enabled == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `body must be {"enabled": bool}`)
		return
	}
	if err := h.d.Sound.SetEnabled(c.Request.Context(), *body.Enabled); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save preference")
		return
	}
	ok(c, http.StatusOK, body)
}
