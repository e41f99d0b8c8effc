package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/service"
)

// EventsHandler streams order changes to dispatcher and driver clients over
// SSE. Each connection owns one OrderFeed; disconnecting tears the feed
// down so no subscription or timer outlives its client.
type EventsHandler struct {
	lister       service.OrderLister
	subscribe    service.SubscribeFunc
	pollInterval time.Duration
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(lister service.OrderLister, subscribe service.SubscribeFunc, pollInterval time.Duration) *EventsHandler {
	return &EventsHandler{
		lister:       lister,
		subscribe:    subscribe,
		pollInterval: pollInterval,
	}
}

// Stream handles GET /v1/orders/stream?company_id=
func (h *EventsHandler) Stream(c *gin.Context) {
	companyID := c.Query("company_id")
	if companyID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "company_id is required"})
		return
	}

	feed := service.NewOrderFeed(companyID, h.lister, h.subscribe, h.pollInterval)
	if err := feed.Start(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	defer feed.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Full list first, then one update per applied reload.
	c.SSEvent("snapshot", toOrderResponses(feed.Snapshot()))
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case update, ok := <-feed.Updates():
			if !ok {
				return
			}
			payload := gin.H{"orders": toOrderResponses(update.Orders)}
			if update.Event != nil {
				payload["event"] = update.Event
			}
			c.SSEvent("update", payload)
			c.Writer.Flush()
		}
	}
}
