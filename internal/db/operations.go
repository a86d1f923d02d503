package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orrn/wishprint/internal/core"
)

const (
	counterDateLayout = "2006-01-02"
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Record appends event to the journal and bumps the daily counter for
// terminal events. It implements core.Journal.
func (d *DB) Record(ctx context.Context, event core.JobEvent) error {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, InsertJobEvent,
		event.JobID, event.OrderName, event.VariantName, event.Index, event.Quantity,
		event.Event, event.Status, event.Detail, createdAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}

	var counterQuery string
	switch event.Event {
	case core.EventFulfilled:
		counterQuery = IncrementFulfilledCounter
	case core.EventFailed, core.EventRenderFailed:
		counterQuery = IncrementFailedCounter
	}
	if counterQuery != "" {
		day := createdAt.Local().Format(counterDateLayout)
		if _, err := tx.ExecContext(ctx, counterQuery, day); err != nil {
			return fmt.Errorf("failed to increment daily counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events first.
func (d *DB) RecentEvents(ctx context.Context, filter EventFilter) ([]*EventRecord, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.OrderName != "" {
		conditions = append(conditions, "order_name = ?")
		args = append(args, filter.OrderName)
	}
	if filter.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, filter.Event)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	query := selectJobEvents
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		e := &EventRecord{}
		if err := rows.Scan(&e.ID, &e.JobID, &e.OrderName, &e.VariantName, &e.Index, &e.Quantity,
			&e.Event, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CounterForDay returns the day's counter, zero-valued when nothing was
// recorded.
func (d *DB) CounterForDay(ctx context.Context, day time.Time) (*PrintCounter, error) {
	c := &PrintCounter{Date: day.Format(counterDateLayout)}
	err := d.conn.QueryRowContext(ctx, GetPrintCounter, c.Date).Scan(&c.Date, &c.Fulfilled, &c.Failed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to get print counter: %w", err)
	}
	return c, nil
}

func (d *DB) Counters(ctx context.Context, from, to time.Time) ([]*PrintCounter, error) {
	rows, err := d.conn.QueryContext(ctx, GetPrintCountersByDateRange,
		from.Format(counterDateLayout), to.Format(counterDateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	defer rows.Close()

	var counters []*PrintCounter
	for rows.Next() {
		c := &PrintCounter{}
		if err := rows.Scan(&c.Date, &c.Fulfilled, &c.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}
