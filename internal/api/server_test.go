package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/orrn/wishprint/internal/api/middleware"
	"github.com/orrn/wishprint/internal/core"
	"github.com/orrn/wishprint/internal/db"
)

type fixture struct {
	tracker *core.StatusTracker
	queue   *core.JobQueue
	journal *db.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "wishprint.db")})
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	tracker := core.NewStatusTracker()
	queue := core.NewJobQueue(nil, tracker, journal, zaptest.NewLogger(t))
	return &fixture{tracker: tracker, queue: queue, journal: journal}
}

func (f *fixture) router(t *testing.T, auth *middleware.AuthMiddleware) http.Handler {
	return NewRouter(Deps{
		Tracker:  f.tracker,
		Queue:    f.queue,
		Events:   f.journal,
		Counters: f.journal,
		Auth:     auth,
	}, zaptest.NewLogger(t))
}

func order(name string, qty int) *core.AggregatedOrder {
	return &core.AggregatedOrder{
		OrderName:   name,
		VariantID:   "v10",
		ProductName: "Wunschbox",
		VariantName: "Groß",
		Quantity:    qty,
		Properties:  []core.Attribute{{Key: "Name", Value: "Anna"}},
		Date:        "05.03.2024",
		CreatedAt:   time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local),
	}
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestOrdersEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.queue.Enqueue(ctx, order("#1001", 2))

	job, ok := f.queue.Dequeue()
	require.True(t, ok)
	job.PrintingStatus = core.StatusFulfilled
	f.tracker.MarkFulfilled(job)

	w := get(t, f.router(t, nil), "/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var view core.StatusView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Pending, 1)
	assert.Equal(t, 2, view.Pending[0].Index)
	assert.Equal(t, core.StatusUnderReview, view.Pending[0].PrintingStatus)
	require.Len(t, view.Completed, 1)
	assert.Equal(t, "#1001", view.Completed[0].OrderName)
	assert.Contains(t, w.Body.String(), `"printingStatus":"Fulfilled"`)
}

func TestOrdersEndpoint_EmptyListsAreArrays(t *testing.T) {
	f := newFixture(t)

	w := get(t, f.router(t, nil), "/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pending":[],"completed":[]}`, w.Body.String())
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.queue.Enqueue(ctx, order("#1001", 3))
	require.NoError(t, f.journal.Record(ctx, core.JobEvent{OrderName: "#1000", Index: 1, Quantity: 1, Event: core.EventFulfilled, CreatedAt: time.Now()}))

	w := get(t, f.router(t, nil), "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 3, stats["pending"])
	assert.EqualValues(t, 3, stats["queue_depth"])
	assert.EqualValues(t, 1, stats["today_fulfilled"])
	assert.NotContains(t, stats, "printer")
}

func TestEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.queue.Enqueue(ctx, order("#1001", 1))
	f.queue.Enqueue(ctx, order("#1002", 1))

	w := get(t, f.router(t, nil), "/events?order=%231002", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []db.EventRecord `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, core.EventQueued, body.Events[0].Event)

	w = get(t, f.router(t, nil), "/events?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	w := httptest.NewRecorder()
	f.router(t, nil).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := middleware.NewAuthMiddleware(string(hash), "")
	require.NoError(t, err)

	f := newFixture(t)
	h := f.router(t, auth)

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/orders", nil).Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", nil).Code)

	login := func(password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"`+password+`"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, login("wrong").Code)

	w := login("letmein")
	require.Equal(t, http.StatusOK, w.Code)
	var resp middleware.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	authed := get(t, h, "/orders", http.Header{"Authorization": {"Bearer " + resp.Token}})
	assert.Equal(t, http.StatusOK, authed.Code)

	bogus := get(t, h, "/orders", http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, bogus.Code)
}

func TestAuthDisabledWithoutHash(t *testing.T) {
	auth, err := middleware.NewAuthMiddleware("", "")
	require.NoError(t, err)

	f := newFixture(t)
	w := get(t, f.router(t, auth), "/orders", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
