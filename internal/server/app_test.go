package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/khazana/internal/server/config"
	"github.com/dmitrijs2005/khazana/internal/server/lockout"
	"github.com/dmitrijs2005/khazana/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.JWTSecret = "app-test-secret"
	cfg.BcryptCost = 4
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.LogLevel = "error"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestNewApp_InMemory(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	result, err := app.service.IssueToken(context.Background(), services.ExchangeRequest{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	assert.True(t, result.FirstLogin)
}

func TestNewApp_RedisLockout(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, app.closers, 1)
	assert.IsType(t, &lockout.RedisStore{}, app.initLockout())
	app.close()
}

func TestNewApp_InvalidBcryptCost(t *testing.T) {
	cfg := testConfig()
	cfg.BcryptCost = 99

	_, err := NewApp(context.Background(), cfg)
	require.Error(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after context cancel")
	}
}
