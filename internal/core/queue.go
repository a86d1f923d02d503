package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EnqueueResult struct {
	Queued  int
	Skipped int
}

// JobQueue is the in-memory FIFO of label units awaiting print. It is the
// only writer of the queue order.
type JobQueue struct {
	mu        sync.Mutex
	jobs      []*PrintJob
	inFlight  map[JobKey]struct{}
	artifacts ArtifactOracle
	tracker   *StatusTracker
	events    *eventSink
	logger    *zap.Logger
	newID     func() string
}

func NewJobQueue(artifacts ArtifactOracle, tracker *StatusTracker, journal Journal, logger *zap.Logger) *JobQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobQueue{
		inFlight:  make(map[JobKey]struct{}),
		artifacts: artifacts,
		tracker:   tracker,
		events:    &eventSink{journal: journal, logger: logger},
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Enqueue expands order into units 1..Quantity. A unit is skipped when its
// label document already exists or when the same (order, variant, index) is
// still queued or being processed.
func (q *JobQueue) Enqueue(ctx context.Context, order *AggregatedOrder) EnqueueResult {
	var result EnqueueResult

	q.mu.Lock()
	defer q.mu.Unlock()

	q.logger.Debug("enqueue order",
		zap.String("order", order.OrderName),
		zap.String("variant", order.VariantName),
		zap.Int("quantity", order.Quantity))

	for i := 1; i <= order.Quantity; i++ {
		job := &PrintJob{
			OrderName:      order.OrderName,
			ProductName:    order.ProductName,
			VariantName:    order.VariantName,
			Properties:     order.Properties,
			Quantity:       order.Quantity,
			Index:          i,
			Date:           order.Date,
			CreatedAt:      order.CreatedAt,
			PrintingStatus: StatusUnderReview,
		}

		if reason, dup := q.duplicateReason(job); dup {
			result.Skipped++
			q.logger.Info("skipping duplicate label",
				zap.String("job", job.Label()),
				zap.String("variant", job.VariantName),
				zap.String("reason", reason))
			q.events.emit(ctx, newJobEvent(job, EventSkipped, reason))
			continue
		}

		job.ID = q.newID()
		q.jobs = append(q.jobs, job)
		if q.tracker != nil {
			q.tracker.MarkQueued(job)
		}
		result.Queued++
		q.logger.Info("label queued", zap.String("job", job.Label()), zap.String("id", job.ID))
		q.events.emit(ctx, newJobEvent(job, EventQueued, ""))
	}

	return result
}

// duplicateReason is called with mu held.
func (q *JobQueue) duplicateReason(job *PrintJob) (string, bool) {
	if q.artifacts != nil && q.artifacts.Exists(job.OrderName, job.Index, job.Quantity) {
		return "label already rendered", true
	}
	key := job.Key()
	for _, queued := range q.jobs {
		if queued.Key() == key {
			return "already queued", true
		}
	}
	if _, ok := q.inFlight[key]; ok {
		return "already in progress", true
	}
	return "", false
}

// Dequeue removes and returns the oldest job. It never blocks. The job's key
// stays reserved against re-enqueueing until Done is called for it.
func (q *JobQueue) Dequeue() (*PrintJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.inFlight[job.Key()] = struct{}{}
	return job, true
}

// Done releases a dequeued job's key. From then on only the rendered label
// on disk keeps the unit from being queued again.
func (q *JobQueue) Done(job *PrintJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, job.Key())
}

func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Snapshot returns copies of the queued jobs in dequeue order.
func (q *JobQueue) Snapshot() []PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PrintJob, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	return out
}
