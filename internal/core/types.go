package core

import (
	"context"
	"fmt"
	"time"
)

// Printing status labels shown on the dashboard.
const (
	StatusUnderReview = "under review"
	StatusPrinting    = "Printing"
	StatusFulfilled   = "Fulfilled"
	statusFailedLabel = "Failed: "
)

// FailedStatus returns the status label for a failed attempt.
func FailedStatus(reason string) string {
	return statusFailedLabel + reason
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LineItem is one upstream order line, flattened with its parent order's
// name and creation time.
type LineItem struct {
	ProductID      string
	ProductTitle   string
	VariantID      string
	VariantTitle   string
	Quantity       int
	Attributes     []Attribute
	OrderName      string
	OrderCreatedAt time.Time
}

type OrderPage struct {
	LineItems   []LineItem
	HasNextPage bool
	Cursor      string
}

type AggregatedOrder struct {
	OrderName   string
	VariantID   string
	ProductName string
	VariantName string
	Quantity    int
	Properties  []Attribute
	Date        string
	CreatedAt   time.Time
}

type PrintJob struct {
	ID             string
	OrderName      string
	ProductName    string
	VariantName    string
	Properties     []Attribute
	Quantity       int
	Index          int
	Date           string
	CreatedAt      time.Time
	PrintingStatus string
}

// JobKey identifies one label unit across the queue and the status lists.
type JobKey struct {
	OrderName   string
	VariantName string
	Index       int
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.OrderName, k.VariantName, k.Index)
}

func (j *PrintJob) Key() JobKey {
	return JobKey{OrderName: j.OrderName, VariantName: j.VariantName, Index: j.Index}
}

// Label returns the "#1001 (2/3)" form used in log lines.
func (j *PrintJob) Label() string {
	return fmt.Sprintf("%s (%d/%d)", j.OrderName, j.Index, j.Quantity)
}

type JobRecord struct {
	ID             string      `json:"id"`
	OrderName      string      `json:"orderName"`
	ProductName    string      `json:"productName"`
	VariantName    string      `json:"variantName"`
	Quantity       int         `json:"quantity"`
	Index          int         `json:"index"`
	Date           string      `json:"date"`
	Properties     []Attribute `json:"properties,omitempty"`
	PrintingStatus string      `json:"printingStatus"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

func (r JobRecord) Key() JobKey {
	return JobKey{OrderName: r.OrderName, VariantName: r.VariantName, Index: r.Index}
}

type StatusView struct {
	Pending   []JobRecord `json:"pending"`
	Completed []JobRecord `json:"completed"`
}

type StatusCounts struct {
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// OrderSource pages through paid, unfulfilled upstream orders. An empty
// cursor requests the first page.
type OrderSource interface {
	FetchOrders(ctx context.Context, after string) (*OrderPage, error)
}

// ArtifactOracle answers whether a label document already exists.
type ArtifactOracle interface {
	Exists(orderName string, index, quantity int) bool
}

type PrintOptions struct {
	PaperSize   string
	Orientation string
	Scale       string
	Silent      bool
}

// Printer hands a rendered document to the local print subsystem.
type Printer interface {
	Print(ctx context.Context, documentPath string, opts PrintOptions) error
}

type Renderer interface {
	Render(ctx context.Context, job *PrintJob) (string, error)
}

type Submitter interface {
	Submit(ctx context.Context, documentPath string, job *PrintJob) error
}

// Event names recorded in the journal and sent to webhooks.
const (
	EventQueued       = "queued"
	EventSkipped      = "skipped"
	EventPrinting     = "printing"
	EventFulfilled    = "fulfilled"
	EventFailed       = "failed"
	EventRenderFailed = "render_failed"
)

type JobEvent struct {
	JobID       string    `json:"job_id"`
	OrderName   string    `json:"order_name"`
	VariantName string    `json:"variant_name"`
	Index       int       `json:"index"`
	Quantity    int       `json:"quantity"`
	Event       string    `json:"event"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newJobEvent(job *PrintJob, event, detail string) JobEvent {
	return JobEvent{
		JobID:       job.ID,
		OrderName:   job.OrderName,
		VariantName: job.VariantName,
		Index:       job.Index,
		Quantity:    job.Quantity,
		Event:       event,
		Status:      job.PrintingStatus,
		Detail:      detail,
		CreatedAt:   time.Now(),
	}
}

// Journal stores job transitions. Write failures must not stop the pipeline.
type Journal interface {
	Record(ctx context.Context, event JobEvent) error
}

type WebhookSender interface {
	SendJobEvent(event JobEvent)
}
