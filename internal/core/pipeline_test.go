package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// staticSource serves the same single page on every fetch.
type staticSource struct {
	page  *OrderPage
	calls int
}

func (s *staticSource) FetchOrders(_ context.Context, _ string) (*OrderPage, error) {
	s.calls++
	return s.page, nil
}

func drainAll(t *testing.T, proc *Processor) int {
	t.Helper()
	n := 0
	for {
		did, err := proc.ProcessNext(context.Background())
		require.NoError(t, err)
		if !did {
			return n
		}
		n++
	}
}

func TestPipeline_SecondPollAfterPrintingQueuesNothing(t *testing.T) {
	logger := zaptest.NewLogger(t)
	renderer, store, _ := newTestRenderer(t)

	tracker := NewStatusTracker()
	journal := &recordingJournal{}
	printer := &fakePrinter{}
	queue := NewJobQueue(store, tracker, journal, logger)
	dispatcher := NewPrintDispatcher(printer, testPrintOptions, 0, tracker, journal, nil, logger)
	proc := NewProcessor(queue, renderer, dispatcher, tracker, journal, nil, logger)

	source := &staticSource{page: &OrderPage{LineItems: []LineItem{
		item("#1001", boxProduct, "v10", 2, Attribute{Key: "Sorte 1", Value: "Vanille"}),
		item("#1002", boxProduct, "v10", 1, Attribute{Key: "Name", Value: "Anna"}),
		item("#1003", otherProduct, "v10", 4),
	}}}
	agg := NewOrderAggregator(source, queue, []string{boxProduct}, 0, logger)
	ctx := context.Background()

	first, err := agg.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, PollResult{Pages: 1, Orders: 2, Queued: 3}, first)

	assert.Equal(t, 3, drainAll(t, proc))
	require.Len(t, printer.paths, 3)
	for _, path := range printer.paths {
		assert.FileExists(t, path)
	}
	assert.True(t, store.Exists("#1001", 2, 2))

	second, err := agg.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, PollResult{Pages: 1, Orders: 2, Queued: 0, Skipped: 3}, second)

	assert.Zero(t, queue.Len())
	assert.Zero(t, drainAll(t, proc))
	assert.Len(t, printer.paths, 3)
	assert.Equal(t, StatusCounts{Completed: 3}, tracker.Counts())
	assert.Equal(t, 2, source.calls)
}
