package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/wishprint/internal/core"
	"github.com/orrn/wishprint/internal/db"
)

type StatusSource interface {
	Snapshot() core.StatusView
	Counts() core.StatusCounts
}

type EventStore interface {
	RecentEvents(ctx context.Context, filter db.EventFilter) ([]*db.EventRecord, error)
}

type ListEventsQuery struct {
	Order string `form:"order"`
	Event string `form:"event"`
	Limit int    `form:"limit" binding:"min=0,max=1000"`
}

type OrderHandler struct {
	tracker StatusSource
	events  EventStore
}

func NewOrderHandler(tracker StatusSource, events EventStore) *OrderHandler {
	return &OrderHandler{tracker: tracker, events: events}
}

// ListOrders serves the dashboard view: pending units (queued, printing or
// failed) and completed units in production order.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

func (h *OrderHandler) ListEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event journal disabled"})
		return
	}

	var query ListEventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.events.RecentEvents(c.Request.Context(), db.EventFilter{
		OrderName: query.Order,
		Event:     query.Event,
		Limit:     query.Limit,
	})
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}
	if events == nil {
		events = []*db.EventRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
