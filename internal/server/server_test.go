// internal/server/server_test.go

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/router"
	"blueprint-engine/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuilder struct {
	mu     sync.Mutex
	builds int
	err    error
}

func (f *fakeBuilder) Build(_ context.Context, keyword string, _ models.BuildOptions) (*models.Blueprint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.builds++
	return &models.Blueprint{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		State:     models.BuildStateComplete,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	done  chan struct{}
}

func (f *fakeNotifier) BlueprintReady(_ context.Context, _ *models.Blueprint, _ models.BuildOptions) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
}

func newTestServer(t *testing.T, builder *fakeBuilder, notifier *fakeNotifier) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	log := logger.NewTestLogger(t)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	st := store.New(db, rdb, nil, "blueprints", time.Hour, 10, log)
	h := NewHandler(st, builder, notifier, 20, log)
	srv := New(config.HTTPConfig{}, h, router.New(log), log)
	return srv.Engine(), mock
}

func postBlueprint(t *testing.T, engine *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/blueprints", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateBlueprint_FreshThenCached(t *testing.T) {
	builder := &fakeBuilder{}
	notifier := &fakeNotifier{done: make(chan struct{}, 2)}
	engine, mock := newTestServer(t, builder, notifier)
	mock.ExpectExec("INSERT INTO blueprints").WillReturnResult(sqlmock.NewResult(1, 1))

	body := `{"keyword": "website speed optimization", "options": {"result_count": 10, "notify_email": "user@example.com"}}`

	first := postBlueprint(t, engine, body)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	var bp models.Blueprint
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &bp))
	assert.Equal(t, "website speed optimization", bp.Keyword)
	assert.Equal(t, models.BuildStateComplete, bp.State)

	select {
	case <-notifier.done:
	case <-time.After(time.Second):
		t.Fatal("fresh build must trigger a notification")
	}

	second := postBlueprint(t, engine, body)
	require.Equal(t, http.StatusOK, second.Code, "cache hit answers with 200")

	var cached models.Blueprint
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &cached))
	assert.Equal(t, bp.ID, cached.ID, "cached response is the same blueprint")
	assert.Equal(t, 1, builder.builds)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, 1, notifier.calls, "cache hits do not re-notify")
}

func TestCreateBlueprint_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing keyword", `{"options": {}}`},
		{"empty keyword", `{"keyword": ""}`},
		{"keyword wrong type", `{"keyword": 42}`},
		{"result count over ceiling", `{"keyword": "kw", "options": {"result_count": 99}}`},
		{"unknown option", `{"keyword": "kw", "options": {"surprise": true}}`},
		{"not json", `keyword=kw`},
	}

	engine, _ := newTestServer(t, &fakeBuilder{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postBlueprint(t, engine, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateBlueprint_SearchExhaustionIs503(t *testing.T) {
	builder := &fakeBuilder{err: &apperrors.NoProviderAvailableError{Capability: "search"}}
	engine, _ := newTestServer(t, builder, nil)

	rec := postBlueprint(t, engine, `{"keyword": "website speed optimization"}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "search", "the exhausted capability must be named")
	assert.Contains(t, rec.Body.String(), `"retryable":true`)
}

func TestGetBlueprint_NotFound(t *testing.T) {
	engine, mock := newTestServer(t, &fakeBuilder{}, nil)
	mock.ExpectQuery("SELECT payload FROM blueprints").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	req := httptest.NewRequest(http.MethodGet, "/blueprints/nope", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetBlueprint_Found(t *testing.T) {
	engine, mock := newTestServer(t, &fakeBuilder{}, nil)

	bp := models.Blueprint{ID: "bp-9", Keyword: "kw", State: models.BuildStateDegradedComplete}
	payload, err := json.Marshal(bp)
	require.NoError(t, err)
	mock.ExpectQuery("SELECT payload FROM blueprints").
		WithArgs("bp-9").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	req := httptest.NewRequest(http.MethodGet, "/blueprints/bp-9", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DEGRADED_COMPLETE", "degraded state must be visible to the caller")
}

func TestSearchBlueprints_RequiresKeyword(t *testing.T) {
	engine, _ := newTestServer(t, &fakeBuilder{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/blueprints", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestServer(t, &fakeBuilder{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
