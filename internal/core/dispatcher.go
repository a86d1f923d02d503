package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PrintDispatcher drives a job through Printing to Fulfilled or Failed.
// Failed jobs are not retried; they stay visible in pending.
type PrintDispatcher struct {
	printer Printer
	options PrintOptions
	timeout time.Duration
	tracker *StatusTracker
	events  *eventSink
	logger  *zap.Logger
}

func NewPrintDispatcher(printer Printer, options PrintOptions, timeout time.Duration, tracker *StatusTracker, journal Journal, webhooks WebhookSender, logger *zap.Logger) *PrintDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrintDispatcher{
		printer: printer,
		options: options,
		timeout: timeout,
		tracker: tracker,
		events:  &eventSink{journal: journal, webhooks: webhooks, logger: logger},
		logger:  logger,
	}
}

// Submit sends documentPath to the printer and records the outcome on job
// and in the status tracker. The returned error is a *PrintError.
func (d *PrintDispatcher) Submit(ctx context.Context, documentPath string, job *PrintJob) error {
	job.PrintingStatus = StatusPrinting
	d.tracker.MarkPrinting(job)
	d.events.emit(ctx, newJobEvent(job, EventPrinting, documentPath))
	d.logger.Info("attempting to print", zap.String("job", job.Label()), zap.String("path", documentPath))

	printCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		printCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.printer.Print(printCtx, documentPath, d.options); err != nil {
		reason := err.Error()
		job.PrintingStatus = FailedStatus(reason)
		d.tracker.MarkFailed(job)
		d.events.emit(ctx, newJobEvent(job, EventFailed, reason))
		d.logger.Error("print failed",
			zap.String("job", job.Label()),
			zap.String("path", documentPath),
			zap.Error(err))
		return &PrintError{OrderName: job.OrderName, Index: job.Index, Reason: reason, Err: err}
	}

	job.PrintingStatus = StatusFulfilled
	d.tracker.MarkFulfilled(job)
	d.events.emit(ctx, newJobEvent(job, EventFulfilled, documentPath))
	d.logger.Info("print job sent", zap.String("job", job.Label()), zap.String("path", documentPath))
	return nil
}
