package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/punkhunt/internal/domain"
	"github.com/tbourn/punkhunt/internal/events"
)

var streamTopics = map[events.Topic]struct{}{
	events.TopicStage:               {},
	events.TopicNotification:        {},
	events.TopicNotificationRemoved: {},
	events.TopicSound:               {},
	events.TopicChat:                {},
	events.TopicGame:                {},
	events.TopicUser:                {},
	events.TopicLeaderboard:         {},
	events.TopicContract:            {},
}

// ReadyEvent is the first event on every stream: the state a late view
// needs before deltas make sense.
type ReadyEvent struct {
	Lanes         []domain.TransactionAttempt `json:"lanes"`
	Notifications []domain.Notification       `json:"notifications"`
	ServerTime    time.Time                   `json:"server_time"`
}

func parseTopics(raw string) ([]events.Topic, bool) {
	var out []events.Topic
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		t := events.Topic(s)
		if _, known := streamTopics[t]; !known {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}

// Events godoc
// @ID          streamEvents
// @Summary     Event stream
// @Description Server-sent events: a "ready" snapshot, then one event per published change (stage, notification, notification_removed, sound, chat, game, user, leaderboard, contract) and a periodic "ping".
// @Tags        Events
// @Produce     text/event-stream
// @Param       topics  query  string  false  "Comma-separated topic filter"  example(stage,notification)
// @Success     200  {string}  string  "event stream"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown topic"
// @Router      /events [get]
func (h *Handlers) Events(c *gin.Context) {
	if h.d.Events == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "event stream unavailable")
		return
	}
	topics, valid := parseTopics(c.Query("topics"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown topic")
		return
	}

	ch, cancel := h.d.Events.Subscribe(topics...)
	defer cancel()

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ready := ReadyEvent{Lanes: []domain.TransactionAttempt{}, Notifications: []domain.Notification{}, ServerTime: h.d.Now().UTC()}
	if h.d.Lanes != nil {
		ready.Lanes = h.d.Lanes.Snapshots()
	}
	if h.d.Notifications != nil {
		ready.Notifications = h.d.Notifications.List()
	}
	c.SSEvent("ready", ready)
	c.Writer.Flush()

	tick := time.NewTicker(h.d.Heartbeat)
	defer tick.Stop()
	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			c.SSEvent(string(ev.Topic), ev)
		case <-tick.C:
			c.SSEvent("ping", h.d.Now().UTC().Unix())
		}
		c.Writer.Flush()
	}
}
