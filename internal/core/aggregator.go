package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const orderDateLayout = "02.01.2006"

// Enqueuer receives the orders of a finished aggregation pass.
type Enqueuer interface {
	Enqueue(ctx context.Context, order *AggregatedOrder) EnqueueResult
}

type PollResult struct {
	Pages   int
	Orders  int
	Queued  int
	Skipped int
}

// OrderAggregator turns paged upstream line items into one AggregatedOrder
// per composite key.
type OrderAggregator struct {
	source   OrderSource
	queue    Enqueuer
	eligible map[string]struct{}
	maxPages int
	logger   *zap.Logger
}

func NewOrderAggregator(source OrderSource, queue Enqueuer, productIDs []string, maxPages int, logger *zap.Logger) *OrderAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	eligible := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if id = strings.TrimSpace(id); id != "" {
			eligible[id] = struct{}{}
		}
	}
	return &OrderAggregator{
		source:   source,
		queue:    queue,
		eligible: eligible,
		maxPages: maxPages,
		logger:   logger,
	}
}

// aggregation accumulates one pass. Orders keep first-seen order.
type aggregation struct {
	index  map[string]int
	orders []*AggregatedOrder
}

func newAggregation() *aggregation {
	return &aggregation{index: make(map[string]int)}
}

// compositeKey is orderName_variantId_key:value|key:value with attributes in
// upstream order.
func compositeKey(item LineItem) string {
	parts := make([]string, len(item.Attributes))
	for i, attr := range item.Attributes {
		parts[i] = attr.Key + ":" + attr.Value
	}
	return item.OrderName + "_" + item.VariantID + "_" + strings.Join(parts, "|")
}

// add merges item and reports whether it created a new order.
func (a *aggregation) add(item LineItem) (*AggregatedOrder, bool) {
	key := compositeKey(item)
	if i, ok := a.index[key]; ok {
		a.orders[i].Quantity += item.Quantity
		return a.orders[i], false
	}

	props := make([]Attribute, len(item.Attributes))
	copy(props, item.Attributes)
	order := &AggregatedOrder{
		OrderName:   item.OrderName,
		VariantID:   item.VariantID,
		ProductName: item.ProductTitle,
		VariantName: item.VariantTitle,
		Quantity:    item.Quantity,
		Properties:  props,
		CreatedAt:   item.OrderCreatedAt,
	}
	if !item.OrderCreatedAt.IsZero() {
		order.Date = item.OrderCreatedAt.Local().Format(orderDateLayout)
	}
	a.index[key] = len(a.orders)
	a.orders = append(a.orders, order)
	return order, true
}

func (a *OrderAggregator) eligibleItem(item LineItem) bool {
	_, ok := a.eligible[item.ProductID]
	return ok
}

// FetchEligibleOrders runs one full aggregation pass. Nothing is returned
// unless every page was fetched.
func (a *OrderAggregator) FetchEligibleOrders(ctx context.Context) ([]*AggregatedOrder, error) {
	orders, _, err := a.fetch(ctx)
	return orders, err
}

func (a *OrderAggregator) fetch(ctx context.Context) ([]*AggregatedOrder, int, error) {
	acc := newAggregation()
	cursor := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, pages, &UpstreamError{Op: "fetch orders", Err: err}
		}

		page, err := a.source.FetchOrders(ctx, cursor)
		if err != nil {
			var upstreamErr *UpstreamError
			if errors.As(err, &upstreamErr) {
				return nil, pages, err
			}
			return nil, pages, &UpstreamError{Op: "fetch orders", Err: err}
		}
		pages++

		for _, item := range page.LineItems {
			if !a.eligibleItem(item) {
				continue
			}
			order, created := acc.add(item)
			if created {
				a.logger.Debug("new order",
					zap.String("order", order.OrderName),
					zap.String("variant", order.VariantName))
			} else {
				a.logger.Debug("order quantity updated",
					zap.String("order", order.OrderName),
					zap.String("variant", order.VariantName),
					zap.Int("quantity", order.Quantity))
			}
		}

		if !page.HasNextPage {
			break
		}
		if a.maxPages > 0 && pages >= a.maxPages {
			a.logger.Warn("page limit reached, ending pass early", zap.Int("pages", pages))
			break
		}
		if page.Cursor == "" || page.Cursor == cursor {
			return nil, pages, &UpstreamError{Op: "fetch orders", Err: ErrNoNextCursor}
		}
		cursor = page.Cursor
		a.logger.Debug("fetching next page", zap.String("cursor", cursor))
	}

	return acc.orders, pages, nil
}

// Poll runs one aggregation pass and hands every order to the queue. On
// error nothing is enqueued.
func (a *OrderAggregator) Poll(ctx context.Context) (PollResult, error) {
	orders, pages, err := a.fetch(ctx)
	result := PollResult{Pages: pages}
	if err != nil {
		return result, err
	}

	result.Orders = len(orders)
	if len(orders) == 0 {
		a.logger.Info("no orders matched the configured products", zap.Int("pages", pages))
		return result, nil
	}

	for _, order := range orders {
		r := a.queue.Enqueue(ctx, order)
		result.Queued += r.Queued
		result.Skipped += r.Skipped
	}

	a.logger.Info("orders enqueued",
		zap.Int("pages", pages),
		zap.Int("orders", result.Orders),
		zap.Int("queued", result.Queued),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
