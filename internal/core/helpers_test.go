package core

import (
	"context"
	"sync"
	"time"
)

type recordingJournal struct {
	mu     sync.Mutex
	events []JobEvent
	err    error
}

func (j *recordingJournal) Record(_ context.Context, event JobEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	return j.err
}

func (j *recordingJournal) names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.events))
	for i, e := range j.events {
		out[i] = e.Event
	}
	return out
}

type recordingWebhooks struct {
	mu     sync.Mutex
	events []JobEvent
}

func (w *recordingWebhooks) SendJobEvent(event JobEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
}

type fakePrinter struct {
	mu    sync.Mutex
	err   error
	block bool
	paths []string
	opts  []PrintOptions
}

func (p *fakePrinter) Print(ctx context.Context, documentPath string, opts PrintOptions) error {
	p.mu.Lock()
	p.paths = append(p.paths, documentPath)
	p.opts = append(p.opts, opts)
	block, err := p.block, p.err
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

type staticArtifacts map[string]bool

func (a staticArtifacts) Exists(orderName string, index, quantity int) bool {
	return a[FileName(orderName, index, quantity)]
}

func sampleOrder(name string, quantity int) *AggregatedOrder {
	created := time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)
	return &AggregatedOrder{
		OrderName:   name,
		VariantID:   "gid://shopify/ProductVariant/10",
		ProductName: "Wunschbox",
		VariantName: "Groß",
		Quantity:    quantity,
		Properties: []Attribute{
			{Key: "Sorte 1", Value: "Vanille"},
			{Key: "Name", Value: "Anna"},
		},
		Date:      created.Format(orderDateLayout),
		CreatedAt: created,
	}
}

func sampleJob(name string, index, quantity int) *PrintJob {
	o := sampleOrder(name, quantity)
	return &PrintJob{
		ID:             "job-" + name,
		OrderName:      o.OrderName,
		ProductName:    o.ProductName,
		VariantName:    o.VariantName,
		Properties:     o.Properties,
		Quantity:       quantity,
		Index:          index,
		Date:           o.Date,
		CreatedAt:      o.CreatedAt,
		PrintingStatus: StatusUnderReview,
	}
}
