package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/domain/models"
	"FinDash/pkg/cache"
	applogger "FinDash/pkg/logger"
)

type fakeStore struct {
	mu         sync.Mutex
	snapshot   *models.Snapshot
	prediction *models.Prediction
	loadErr    error
	loadResult *models.Snapshot
	loads      int
	predicts   int
	busy       bool
}

func (s *fakeStore) CurrentSnapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

func (s *fakeStore) CurrentPrediction() *models.Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prediction.Clone()
}

func (s *fakeStore) LoadInitialData(context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.loadResult != nil {
		s.snapshot = s.loadResult.Clone()
	}
	return s.snapshot.Clone(), nil
}

func (s *fakeStore) StartPrediction(context.Context) (*models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predicts++
	return nil, nil
}

func (s *fakeStore) IsBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

type inlineRunner struct {
	err error
}

func (r inlineRunner) Go(_ string, fn func(ctx context.Context)) error {
	if r.err != nil {
		return r.err
	}
	fn(context.Background())
	return nil
}

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

func snapshotV(v uint64, price float64) *models.Snapshot {
	return &models.Snapshot{
		Version:      v,
		CurrentPrice: price,
		PriceHistory: []models.PricePoint{{Timestamp: time.Unix(0, 0).UTC(), Price: price}},
		Models:       map[string]models.ModelMetrics{"hybrid": {Accuracy: 0.91, Precision: 0.90, Recall: 0.89}},
	}
}

func newTestServer(store DashboardStore, runner inlineRunner, opts ...HandlerOption) *echo.Echo {
	e := echo.New()
	NewDashboardEchoHandler(applogger.Nop(), store, runner, fixedCount(2), opts...).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestDashboard_ReturnsCurrentSnapshot(t *testing.T) {
	store := &fakeStore{snapshot: snapshotV(3, 9138.90)}
	e := newTestServer(store, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 9138.90, got.CurrentPrice)
	assert.Equal(t, uint64(3), got.Version)
	assert.Equal(t, 0, store.loads)
}

func TestDashboard_LoadsWhenEmpty(t *testing.T) {
	store := &fakeStore{loadResult: snapshotV(1, 9100)}
	e := newTestServer(store, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.loads)
	assert.Contains(t, rec.Body.String(), `"currentPrice":9100`)
}

func TestDashboard_Refresh(t *testing.T) {
	store := &fakeStore{snapshot: snapshotV(1, 9100), loadResult: snapshotV(2, 9200)}
	e := newTestServer(store, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/dashboard?refresh=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.loads)
	assert.Contains(t, rec.Body.String(), `"currentPrice":9200`)
}

func TestDashboard_InvalidRefresh(t *testing.T) {
	e := newTestServer(&fakeStore{snapshot: snapshotV(1, 9100)}, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/dashboard?refresh=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_LoadFailure(t *testing.T) {
	e := newTestServer(&fakeStore{loadErr: errors.New("no data")}, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/dashboard")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to load dashboard data"}`, rec.Body.String())
}

func TestDashboard_LoadInFlightElsewhere(t *testing.T) {
	// busy store: load returns the (still empty) current snapshot
	e := newTestServer(&fakeStore{busy: true}, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/dashboard")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to load dashboard data"}`, rec.Body.String())
}

func TestPredict_Acknowledges(t *testing.T) {
	store := &fakeStore{}
	e := newTestServer(store, inlineRunner{})

	rec := do(e, http.MethodPost, "/api/predict")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Prediction started"}`, rec.Body.String())
	assert.Equal(t, 1, store.predicts)
}

func TestPredict_SpawnFailure(t *testing.T) {
	store := &fakeStore{}
	e := newTestServer(store, inlineRunner{err: errors.New("scheduler: closed")})

	rec := do(e, http.MethodPost, "/api/predict")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Prediction failed"}`, rec.Body.String())
	assert.Equal(t, 0, store.predicts)
}

func TestLastPrediction(t *testing.T) {
	store := &fakeStore{}
	e := newTestServer(store, inlineRunner{})

	rec := do(e, http.MethodGet, "/api/last-prediction")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No prediction available"}`, rec.Body.String())

	store.prediction = &models.Prediction{
		Direction:     models.DirectionDown,
		Confidence:    77,
		Probabilities: models.Probabilities{Up: 41.2, Down: 58.8},
		Model:         models.ModelSVM,
		Timestamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	rec = do(e, http.MethodGet, "/api/last-prediction")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"direction":"DOWN",
		"confidence":77,
		"probabilities":{"up":41.2,"down":58.8},
		"model":"svm",
		"timestamp":"2024-03-01T12:00:00Z"
	}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	e := newTestServer(&fakeStore{busy: true}, inlineRunner{})

	rec := do(e, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","busy":true,"subscribers":2}`, rec.Body.String())
}

func TestDashboard_BodyCacheKeyedByVersion(t *testing.T) {
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })
	store := &fakeStore{snapshot: snapshotV(1, 9100)}
	h := NewDashboardEchoHandler(applogger.Nop(), store, inlineRunner{}, fixedCount(2), WithBodyCache(c, time.Minute))
	e := echo.New()
	h.RegisterRoutes(e)

	first := do(e, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, first.Code)

	cached, err := c.Get(context.Background(), "dashboard:"+h.cacheScope+":snapshot:v1")
	require.NoError(t, err)
	assert.JSONEq(t, first.Body.String(), string(cached))

	// same version is served from the cache
	again := do(e, http.MethodGet, "/api/dashboard")
	assert.JSONEq(t, first.Body.String(), again.Body.String())

	// a new version misses the cache
	store.mu.Lock()
	store.snapshot = snapshotV(2, 9150)
	store.mu.Unlock()
	next := do(e, http.MethodGet, "/api/dashboard")
	assert.Contains(t, next.Body.String(), `"currentPrice":9150`)
}

func TestDashboard_SharedCacheAcrossRestarts(t *testing.T) {
	// one cache outliving two processes whose versions both start at 1
	shared := cache.NewMemoryCache()
	t.Cleanup(func() { _ = shared.Close() })

	before := newTestServer(&fakeStore{snapshot: snapshotV(1, 9138.90)}, inlineRunner{}, WithBodyCache(shared, time.Minute))
	rec := do(before, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currentPrice":9138.9`)

	after := newTestServer(&fakeStore{snapshot: snapshotV(1, 9200)}, inlineRunner{}, WithBodyCache(shared, time.Minute))
	rec = do(after, http.MethodGet, "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currentPrice":9200`)
}

func TestLastPrediction_SharedCacheAcrossRestarts(t *testing.T) {
	shared := cache.NewMemoryCache()
	t.Cleanup(func() { _ = shared.Close() })
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	before := newTestServer(&fakeStore{prediction: &models.Prediction{
		Direction: models.DirectionUp, Confidence: 81, Model: models.ModelSVM, Timestamp: ts,
	}}, inlineRunner{}, WithBodyCache(shared, time.Minute))
	rec := do(before, http.MethodGet, "/api/last-prediction")
	require.Equal(t, http.StatusOK, rec.Code)

	after := newTestServer(&fakeStore{prediction: &models.Prediction{
		Direction: models.DirectionDown, Confidence: 74, Model: models.ModelSVM, Timestamp: ts,
	}}, inlineRunner{}, WithBodyCache(shared, time.Minute))
	rec = do(after, http.MethodGet, "/api/last-prediction")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"direction":"DOWN"`)
}
