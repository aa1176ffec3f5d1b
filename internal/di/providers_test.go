package di

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinDash/internal/service/scoring"
	"FinDash/pkg/cache"
	"FinDash/pkg/config"
	"FinDash/pkg/eventbus"
	applogger "FinDash/pkg/logger"
	"FinDash/pkg/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Log.Level = "error"
	cfg.Log.Format = "json"
	return cfg
}

func TestProvidePredictor(t *testing.T) {
	cfg := testConfig(t)
	clock := clockwork.NewFakeClock()

	_, ok := ProvidePredictor(cfg, clock, applogger.Nop()).(*scoring.RandomPredictor)
	assert.True(t, ok)

	cfg.Scoring.URL = "http://scoring:8000"
	_, ok = ProvidePredictor(cfg, clock, applogger.Nop()).(*scoring.Client)
	assert.True(t, ok)
}

func TestProvideCache(t *testing.T) {
	cfg := testConfig(t)

	c, err := ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	mem, ok := c.(*cache.MemoryCache)
	require.True(t, ok)
	assert.NoError(t, mem.Close())

	cfg.Cache.Enabled = false
	c, err = ProvideCache(cfg, applogger.Nop())
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.Cache.Enabled = true
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Addr = "127.0.0.1:1"
	_, err = ProvideCache(cfg, applogger.Nop())
	assert.Error(t, err)
}

func TestProvideEventExporter_Disabled(t *testing.T) {
	cfg := testConfig(t)

	exp, err := ProvideEventExporter(cfg, eventbus.New(), metrics.Noop{}, applogger.Nop(), clockwork.NewFakeClock())
	require.NoError(t, err)
	assert.Nil(t, exp)
}

func TestProvideEventExporter_AttachesToBus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}
	bus := eventbus.New()

	exp, err := ProvideEventExporter(cfg, bus, metrics.Noop{}, applogger.Nop(), clockwork.NewFakeClock())
	require.NoError(t, err)
	require.NotNil(t, exp)

	// never started: Stop only detaches and closes the producer
	require.NoError(t, exp.Stop(context.Background()))
}

func TestInitializeApp_RunsAndStops(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Dashboard.Seed = 42

	app, err := InitializeApp(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
