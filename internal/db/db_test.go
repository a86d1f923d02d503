package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orrn/wishprint/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(Config{Path: filepath.Join(t.TempDir(), "data", "wishprint.db")})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func event(order string, index int, name string, at time.Time) core.JobEvent {
	return core.JobEvent{
		JobID:       "job-" + order,
		OrderName:   order,
		VariantName: "Groß",
		Index:       index,
		Quantity:    2,
		Event:       name,
		Status:      core.StatusUnderReview,
		CreatedAt:   at,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wishprint.db")
	first, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer second.Close()

	applied, err := appliedMigrations(second.conn)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"001_job_events": true, "002_print_counters": true}, applied)
}

func TestRecord_AndRecentEvents(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, d.Record(ctx, event("#1001", 1, core.EventQueued, now)))
	require.NoError(t, d.Record(ctx, event("#1001", 1, core.EventFulfilled, now.Add(time.Second))))
	require.NoError(t, d.Record(ctx, event("#1002", 1, core.EventQueued, now.Add(2*time.Second))))

	all, err := d.RecentEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "#1002", all[0].OrderName)
	assert.Equal(t, core.EventQueued, all[2].Event)
	assert.Equal(t, "Groß", all[2].VariantName)
	assert.WithinDuration(t, now, all[2].CreatedAt, time.Second)

	byOrder, err := d.RecentEvents(ctx, EventFilter{OrderName: "#1001"})
	require.NoError(t, err)
	assert.Len(t, byOrder, 2)

	limited, err := d.RecentEvents(ctx, EventFilter{Event: core.EventQueued, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "#1002", limited[0].OrderName)
}

func TestRecord_DailyCounters(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	today := time.Now()
	yesterday := today.AddDate(0, 0, -1)

	require.NoError(t, d.Record(ctx, event("#1001", 1, core.EventFulfilled, today)))
	require.NoError(t, d.Record(ctx, event("#1001", 2, core.EventFulfilled, today)))
	require.NoError(t, d.Record(ctx, event("#1002", 1, core.EventFailed, today)))
	require.NoError(t, d.Record(ctx, event("#1003", 1, core.EventRenderFailed, today)))
	require.NoError(t, d.Record(ctx, event("#1004", 1, core.EventPrinting, today)))
	require.NoError(t, d.Record(ctx, event("#1000", 1, core.EventFulfilled, yesterday)))

	c, err := d.CounterForDay(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Fulfilled)
	assert.Equal(t, int64(2), c.Failed)

	empty, err := d.CounterForDay(ctx, today.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.Zero(t, empty.Fulfilled)

	rangeCounters, err := d.Counters(ctx, yesterday, today)
	require.NoError(t, err)
	require.Len(t, rangeCounters, 2)
	assert.Equal(t, int64(1), rangeCounters[0].Fulfilled)
}
