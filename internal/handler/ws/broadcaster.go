package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"FinDash/internal/domain"
	"FinDash/internal/domain/events"
	"FinDash/internal/domain/models"
	domrepo "FinDash/internal/domain/repository"
	"FinDash/internal/service/ratelimit"
	"FinDash/internal/usecase"
	"FinDash/pkg/eventbus"
	applogger "FinDash/pkg/logger"
)

// ErrBroadcasterClosed is returned by Register after Shutdown.
var ErrBroadcasterClosed = errors.New("broadcaster: closed")

const maxCommandSize = 512

// Store is what the broadcaster needs from the dashboard.
type Store interface {
	CurrentSnapshot() *models.Snapshot
	LoadInitialData(ctx context.Context) (*models.Snapshot, error)
	StartPrediction(ctx context.Context) (*models.Prediction, error)
}

// Config holds subscriber connection settings.
type Config struct {
	Path          string
	SendBuffer    int
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	PongTimeout   time.Duration
	ForwardErrors bool
	CommandBurst  float64
	CommandRate   float64
}

// DefaultConfig returns the stock connection settings.
func DefaultConfig() Config {
	return Config{
		Path:         "/ws",
		SendBuffer:   16,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		CommandBurst: 5,
		CommandRate:  1,
	}
}

// Option configures Broadcaster.
type Option func(*Broadcaster)

// WithConfig overrides connection settings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(b *Broadcaster) {
		def := DefaultConfig()
		if cfg.Path == "" {
			cfg.Path = def.Path
		}
		if cfg.SendBuffer <= 0 {
			cfg.SendBuffer = def.SendBuffer
		}
		if cfg.WriteTimeout <= 0 {
			cfg.WriteTimeout = def.WriteTimeout
		}
		if cfg.PingInterval <= 0 {
			cfg.PingInterval = def.PingInterval
		}
		if cfg.PongTimeout <= 0 {
			cfg.PongTimeout = def.PongTimeout
		}
		b.cfg = cfg
	}
}

// WithClock sets the clock driving pings and the command limiter.
func WithClock(c clockwork.Clock) Option {
	return func(b *Broadcaster) {
		if c != nil {
			b.clock = c
		}
	}
}

// Broadcaster pushes dashboard events to every connected WebSocket subscriber.
// Each subscriber has its own writer goroutine and bounded queue; a subscriber that
// fails or falls behind is dropped without affecting the others.
type Broadcaster struct {
	store   Store
	runner  usecase.TaskRunner
	metrics domrepo.Metrics
	logger  *applogger.Logger
	clock   clockwork.Clock
	cfg     Config

	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool

	bus     *eventbus.Bus
	busSubs []eventbus.Subscription
}

// NewBroadcaster creates a broadcaster. Commands run as detached tasks on runner.
func NewBroadcaster(store Store, runner usecase.TaskRunner, metrics domrepo.Metrics, logger *applogger.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		store:   store,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		cfg:     DefaultConfig(),
		subs:    make(map[string]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboards are served from other origins
			},
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.limiter = ratelimit.New(b.cfg.CommandBurst, b.cfg.CommandRate, b.clock)
	return b
}

// Attach subscribes the broadcaster to every event it may forward.
func (b *Broadcaster) Attach(bus *eventbus.Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bus = bus
	for _, name := range events.All {
		b.busSubs = append(b.busSubs, bus.Subscribe(name, b.HandleEvent))
	}
}

// HandleEvent converts a bus event into a push to all subscribers.
func (b *Broadcaster) HandleEvent(_ context.Context, evt eventbus.Event) error {
	msgType, ok := messageType(evt, b.cfg.ForwardErrors)
	if !ok {
		return nil
	}
	return b.Broadcast(msgType, events.Payload(evt))
}

// RegisterRoutes mounts the WebSocket endpoint.
func (b *Broadcaster) RegisterRoutes(e *echo.Echo) {
	e.GET(b.cfg.Path, b.ServeWS)
}

// ServeWS upgrades the request and serves the subscriber until it disconnects.
func (b *Broadcaster) ServeWS(c echo.Context) error {
	conn, err := b.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		b.logger.Debug("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	conn.SetReadLimit(maxCommandSize)

	id, err := b.Register(conn)
	if err != nil {
		_ = conn.Close()
		return nil
	}
	b.readLoop(id, conn)
	return nil
}

// Register adds conn to the live set and queues initialData when a snapshot exists.
// initialData is queued before the subscriber becomes visible to broadcasts.
func (b *Broadcaster) Register(conn Conn) (string, error) {
	id := uuid.NewString()
	sub := newSubscriber(id, conn, b.clock, b.cfg, b.writerExited)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return "", ErrBroadcasterClosed
	}
	if snap := b.store.CurrentSnapshot(); snap != nil {
		msg, err := encode(TypeInitialData, snap)
		if err == nil {
			ok := sub.enqueue(msg)
			b.metrics.RecordDelivery(TypeInitialData, ok)
		}
	}
	b.subs[id] = sub
	n := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.logger.Debug("subscriber connected", applogger.String("subscriber", id), applogger.Int("subscribers", n))
	return id, nil
}

// Unregister removes a subscriber and closes its connection. Unknown ids are ignored.
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	n := len(b.subs)
	b.mu.Unlock()

	b.limiter.Forget(id)
	if !ok {
		return
	}
	sub.close()
	b.metrics.SetSubscribers(n)
	b.logger.Debug("subscriber disconnected", applogger.String("subscriber", id), applogger.Int("subscribers", n))
}

// Broadcast sends one message to every live subscriber.
// Delivery failures drop the failing subscriber and are never returned.
func (b *Broadcaster) Broadcast(msgType string, data interface{}) error {
	msg, err := encode(msgType, data)
	if err != nil {
		b.metrics.RecordError("ws_encode")
		return err
	}

	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		if s.closed() {
			continue
		}
		if s.enqueue(msg) {
			b.metrics.RecordDelivery(msgType, true)
			continue
		}
		b.metrics.RecordDelivery(msgType, false)
		b.drop(s, &domain.DeliveryError{SubscriberID: s.id, Err: errors.New("send queue full")})
	}
	return nil
}

// Count returns the number of live subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Shutdown detaches from the bus and closes every subscriber with a close frame.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*subscriber)
	bus, busSubs := b.bus, b.busSubs
	b.bus, b.busSubs = nil, nil
	b.mu.Unlock()

	if bus != nil {
		for _, s := range busSubs {
			bus.Unsubscribe(s)
		}
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *subscriber) {
			defer wg.Done()
			s.closeGraceful("server shutting down")
		}(s)
	}
	wg.Wait()

	b.metrics.SetSubscribers(0)
	b.logger.Info("broadcaster stopped", applogger.Int("closed", len(subs)))
}

func (b *Broadcaster) readLoop(id string, conn Conn) {
	defer b.Unregister(id)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Debug("subscriber read failed", applogger.String("subscriber", id), applogger.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		b.HandleCommand(id, strings.TrimSpace(string(data)))
	}
}

// HandleCommand runs an inbound command as a detached task. Unknown and
// rate-limited commands are ignored.
func (b *Broadcaster) HandleCommand(id, cmd string) {
	var task func(ctx context.Context)
	switch cmd {
	case CommandGetPrediction:
		task = func(ctx context.Context) { _, _ = b.store.StartPrediction(ctx) }
	case CommandGetDashboardData:
		task = func(ctx context.Context) { _, _ = b.store.LoadInitialData(ctx) }
	default:
		b.logger.Debug("unknown command ignored", applogger.String("subscriber", id), applogger.String("command", cmd))
		return
	}

	if !b.limiter.Allow(id) {
		b.metrics.RecordError("ws_command_limited")
		b.logger.Debug("command rate limited", applogger.String("subscriber", id), applogger.String("command", cmd))
		return
	}

	if err := b.runner.Go("ws:"+cmd, task); err != nil {
		b.logger.Warn("command not started", applogger.String("command", cmd), applogger.Error(err))
	}
}

// writerExited runs on the writer goroutine after a failed write.
func (b *Broadcaster) writerExited(s *subscriber, err error) {
	b.drop(s, &domain.DeliveryError{SubscriberID: s.id, Err: err})
}

func (b *Broadcaster) drop(s *subscriber, err *domain.DeliveryError) {
	b.mu.Lock()
	removed := false
	if cur, ok := b.subs[s.id]; ok && cur == s {
		delete(b.subs, s.id)
		removed = true
	}
	n := len(b.subs)
	b.mu.Unlock()

	s.close()
	if !removed {
		return
	}
	b.limiter.Forget(s.id)
	b.metrics.SetSubscribers(n)
	b.logger.Debug("subscriber dropped", applogger.Error(err), applogger.Int("subscribers", n))
}
