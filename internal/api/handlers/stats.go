package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orrn/wishprint/internal/core"
	"github.com/orrn/wishprint/internal/db"
)

type QueueInspector interface {
	Len() int
}

type CounterStore interface {
	CounterForDay(ctx context.Context, day time.Time) (*db.PrintCounter, error)
}

type PrinterInspector interface {
	LastStatus() *core.SpoolerStatus
}

type PrinterStats struct {
	Destination string     `json:"destination"`
	State       string     `json:"state"`
	CanPrint    bool       `json:"can_print"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

type StatsResponse struct {
	Pending        int           `json:"pending"`
	Failed         int           `json:"failed"`
	Completed      int           `json:"completed"`
	QueueDepth     int           `json:"queue_depth"`
	TodayFulfilled int64         `json:"today_fulfilled"`
	TodayFailed    int64         `json:"today_failed"`
	Printer        *PrinterStats `json:"printer,omitempty"`
}

type StatsHandler struct {
	tracker  StatusSource
	queue    QueueInspector
	counters CounterStore
	printer  PrinterInspector
	now      func() time.Time
}

// NewStatsHandler accepts nil counters and printer; their fields are then
// left out of the response.
func NewStatsHandler(tracker StatusSource, queue QueueInspector, counters CounterStore, printer PrinterInspector) *StatsHandler {
	return &StatsHandler{
		tracker:  tracker,
		queue:    queue,
		counters: counters,
		printer:  printer,
		now:      time.Now,
	}
}

func (h *StatsHandler) GetStats(c *gin.Context) {
	counts := h.tracker.Counts()
	resp := StatsResponse{
		Pending:    counts.Pending,
		Failed:     counts.Failed,
		Completed:  counts.Completed,
		QueueDepth: h.queue.Len(),
	}

	if h.counters != nil {
		today, err := h.counters.CounterForDay(c.Request.Context(), h.now())
		if err != nil {
			c.Error(err)
		} else {
			resp.TodayFulfilled = today.Fulfilled
			resp.TodayFailed = today.Failed
		}
	}

	if h.printer != nil {
		if status := h.printer.LastStatus(); status != nil {
			checked := status.LastChecked
			resp.Printer = &PrinterStats{
				Destination: status.Destination,
				State:       status.State,
				CanPrint:    status.CanPrint,
				LastChecked: &checked,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "wishprint"})
}
