package core

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Processor takes one job at a time from the queue through rendering and
// printing.
type Processor struct {
	queue      *JobQueue
	renderer   Renderer
	dispatcher Submitter
	tracker    *StatusTracker
	events     *eventSink
	logger     *zap.Logger
}

func NewProcessor(queue *JobQueue, renderer Renderer, dispatcher Submitter, tracker *StatusTracker, journal Journal, webhooks WebhookSender, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		queue:      queue,
		renderer:   renderer,
		dispatcher: dispatcher,
		tracker:    tracker,
		events:     &eventSink{journal: journal, webhooks: webhooks, logger: logger},
		logger:     logger,
	}
}

// ProcessNext handles the head of the queue. It reports false when the queue
// was empty. A render failure marks the job failed and is not retried.
func (p *Processor) ProcessNext(ctx context.Context) (bool, error) {
	job, ok := p.queue.Dequeue()
	if !ok {
		return false, nil
	}
	defer p.queue.Done(job)

	path, err := p.renderer.Render(ctx, job)
	if err != nil {
		reason := err.Error()
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			reason = renderErr.Err.Error()
		}
		job.PrintingStatus = FailedStatus(reason)
		p.tracker.MarkFailed(job)
		p.events.emit(ctx, newJobEvent(job, EventRenderFailed, reason))
		p.logger.Error("label rendering failed", zap.String("job", job.Label()), zap.Error(err))
		return true, err
	}

	return true, p.dispatcher.Submit(ctx, path, job)
}
