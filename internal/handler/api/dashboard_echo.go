package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"FinDash/internal/domain/models"
	"FinDash/internal/usecase"
	"FinDash/pkg/cache"
	xhttp "FinDash/pkg/http"
	xlogger "FinDash/pkg/logger"
)

const (
	msgLoadFailed      = "Failed to load dashboard data"
	msgPredictFailed   = "Prediction failed"
	msgPredictStarted  = "Prediction started"
	msgNoPrediction    = "No prediction available"
	defaultBodyTTL     = 5 * time.Minute
	snapshotKeyPattern = "dashboard:%s:snapshot:v%d"
	predictionKeyFmt   = "dashboard:%s:prediction:%d"
)

var errLoadInFlight = errors.New("first load still in flight")

// DashboardStore is the part of the store the gateway reads and triggers.
type DashboardStore interface {
	CurrentSnapshot() *models.Snapshot
	CurrentPrediction() *models.Prediction
	LoadInitialData(ctx context.Context) (*models.Snapshot, error)
	StartPrediction(ctx context.Context) (*models.Prediction, error)
	IsBusy() bool
}

// SubscriberCounter reports live push subscribers.
type SubscriberCounter interface {
	Count() int
}

// HandlerOption configures DashboardEchoHandler.
type HandlerOption func(*DashboardEchoHandler)

// WithBodyCache caches serialized bodies in c for ttl.
func WithBodyCache(c cache.Service, ttl time.Duration) HandlerOption {
	return func(h *DashboardEchoHandler) {
		h.cache = c
		if ttl > 0 {
			h.cacheTTL = ttl
		}
	}
}

// DashboardEchoHandler serves snapshot reads and mutation triggers over HTTP.
// Cached bodies are scoped to the handler instance: snapshot versions restart
// with the process while a shared cache does not.
type DashboardEchoHandler struct {
	logger     *xlogger.Logger
	store      DashboardStore
	runner     usecase.TaskRunner
	subs       SubscriberCounter
	cache      cache.Service
	cacheTTL   time.Duration
	cacheScope string
}

func NewDashboardEchoHandler(
	logger *xlogger.Logger,
	store DashboardStore,
	runner usecase.TaskRunner,
	subs SubscriberCounter,
	opts ...HandlerOption,
) *DashboardEchoHandler {
	h := &DashboardEchoHandler{
		logger:     logger,
		store:      store,
		runner:     runner,
		subs:       subs,
		cacheTTL:   defaultBodyTTL,
		cacheScope: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/dashboard", h.Dashboard)
	g.POST("/predict", h.Predict)
	g.GET("/last-prediction", h.LastPrediction)
	e.GET("/healthz", h.Health)
}

// Dashboard returns the current snapshot, loading it first when none exists or refresh=true.
func (h *DashboardEchoHandler) Dashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap := h.store.CurrentSnapshot()
	if snap == nil || req.Refresh {
		loaded, err := h.store.LoadInitialData(c.Request().Context())
		if err != nil {
			return h.fail(c, xhttp.InternalError(msgLoadFailed).WithError(err))
		}
		if loaded != nil {
			snap = loaded
		}
	}
	if snap == nil {
		// first load still in flight on another request
		return h.fail(c, xhttp.InternalError(msgLoadFailed).WithError(errLoadInFlight))
	}

	return h.cachedJSON(c, fmt.Sprintf(snapshotKeyPattern, h.cacheScope, snap.Version), snap)
}

// Predict starts a prediction cycle in the background and acknowledges immediately.
func (h *DashboardEchoHandler) Predict(c echo.Context) error {
	err := h.runner.Go("api:predict", func(ctx context.Context) {
		_, _ = h.store.StartPrediction(ctx)
	})
	if err != nil {
		return h.fail(c, xhttp.InternalError(msgPredictFailed).WithError(err))
	}
	return xhttp.MessageResponse(c, http.StatusOK, msgPredictStarted)
}

// LastPrediction returns the stored prediction or 404.
func (h *DashboardEchoHandler) LastPrediction(c echo.Context) error {
	pred := h.store.CurrentPrediction()
	if pred == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(msgNoPrediction))
	}
	return h.cachedJSON(c, fmt.Sprintf(predictionKeyFmt, h.cacheScope, pred.Timestamp.UnixNano()), pred)
}

func (h *DashboardEchoHandler) Health(c echo.Context) error {
	res := models.HealthResponse{
		Status: "ok",
		Busy:   h.store.IsBusy(),
	}
	if h.subs != nil {
		res.Subscribers = h.subs.Count()
	}
	return xhttp.JSONResponse(c, http.StatusOK, res)
}

// cachedJSON serves v from the body cache under key, filling it on a miss.
// Cache failures fall back to encoding v directly.
func (h *DashboardEchoHandler) cachedJSON(c echo.Context, key string, v interface{}) error {
	if h.cache == nil {
		return xhttp.JSONResponse(c, http.StatusOK, v)
	}

	ctx := c.Request().Context()
	body, err := h.cache.Get(ctx, key)
	if err == nil {
		return c.JSONBlob(http.StatusOK, body)
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.Warn("body cache get error", xlogger.String("key", key), xlogger.Error(err))
	}

	body, err = json.Marshal(v)
	if err != nil {
		return h.fail(c, fmt.Errorf("encode response: %w", err))
	}
	if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
		h.logger.Warn("body cache set error", xlogger.String("key", key), xlogger.Error(err))
	}
	return c.JSONBlob(http.StatusOK, body)
}

// fail logs err server-side and writes its client-facing form.
func (h *DashboardEchoHandler) fail(c echo.Context, err error) error {
	h.logger.Error("dashboard request failed",
		xlogger.String("path", c.Path()),
		xlogger.Error(err),
	)
	return xhttp.AppErrorResponse(c, err)
}
