package core

import (
	"strings"
	"sync"
	"time"
)

// StatusTracker owns the pending and completed views served to the
// dashboard. A key lives in exactly one of the two lists.
type StatusTracker struct {
	mu        sync.RWMutex
	pending   []JobRecord
	completed []JobRecord
	now       func() time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{now: time.Now}
}

func (t *StatusTracker) record(job *PrintJob) JobRecord {
	props := make([]Attribute, len(job.Properties))
	copy(props, job.Properties)
	return JobRecord{
		ID:             job.ID,
		OrderName:      job.OrderName,
		ProductName:    job.ProductName,
		VariantName:    job.VariantName,
		Quantity:       job.Quantity,
		Index:          job.Index,
		Date:           job.Date,
		Properties:     props,
		PrintingStatus: job.PrintingStatus,
		UpdatedAt:      t.now(),
	}
}

// removePending drops the pending record for key and reports whether one
// was present. Caller holds mu.
func (t *StatusTracker) removePending(key JobKey) bool {
	for i, r := range t.pending {
		if r.Key() == key {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return true
		}
	}
	return false
}

// MarkQueued appends a pending record for a newly queued job. A stale
// pending record for the same key (a unit that failed earlier and was queued
// again) is replaced rather than duplicated.
func (t *StatusTracker) MarkQueued(job *PrintJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removePending(job.Key())
	t.pending = append(t.pending, t.record(job))
}

// MarkPrinting updates the pending record in place.
func (t *StatusTracker) MarkPrinting(job *PrintJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := job.Key()
	for i := range t.pending {
		if t.pending[i].Key() == key {
			t.pending[i].PrintingStatus = job.PrintingStatus
			t.pending[i].UpdatedAt = t.now()
			return
		}
	}
}

// MarkFulfilled moves the job from pending to the end of completed.
func (t *StatusTracker) MarkFulfilled(job *PrintJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removePending(job.Key())
	t.completed = append(t.completed, t.record(job))
}

// MarkFailed removes the job from pending and re-appends it with its failed
// status. It stays there until a later pass queues the unit again.
func (t *StatusTracker) MarkFailed(job *PrintJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removePending(job.Key())
	t.pending = append(t.pending, t.record(job))
}

func (t *StatusTracker) Snapshot() StatusView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return StatusView{
		Pending:   cloneRecords(t.pending),
		Completed: cloneRecords(t.completed),
	}
}

func cloneRecords(records []JobRecord) []JobRecord {
	out := make([]JobRecord, len(records))
	for i, r := range records {
		r.Properties = append([]Attribute(nil), r.Properties...)
		out[i] = r
	}
	return out
}

func (t *StatusTracker) Counts() StatusCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := StatusCounts{
		Pending:   len(t.pending),
		Completed: len(t.completed),
	}
	for _, r := range t.pending {
		if strings.HasPrefix(r.PrintingStatus, statusFailedLabel) {
			counts.Failed++
		}
	}
	return counts
}
