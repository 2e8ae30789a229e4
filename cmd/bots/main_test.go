package main

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgame/server"
	"webgame/store"
)

func TestParseArgs(t *testing.T) {
	o, err := parseArgs([]string{"-duration", "5s", "localhost", "2000", "2", "10"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:2000/ws", o.url())
	assert.Equal(t, 2, o.workers)
	assert.Equal(t, 10, o.perWorker)
	assert.Equal(t, 5*time.Second, o.duration)
	assert.Equal(t, 250*time.Millisecond, o.every)
	assert.Equal(t, "bot", o.prefix)

	for _, args := range [][]string{
		{"localhost", "2000", "2"},
		{"localhost", "2000", "two", "10"},
		{"localhost", "2000", "2", "0"},
		{"-every", "0s", "localhost", "2000", "1", "1"},
	} {
		_, err := parseArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestBotsPlayAgainstServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemoryStore()
	s := server.NewScheduler(st, nil, server.Options{TickDuration: 20 * time.Millisecond})
	require.NoError(t, s.StartPersistence(context.Background()))
	s.StartGame()
	t.Cleanup(func() { s.Shutdown(context.Background()) })

	srv := httptest.NewServer(server.NewRouter(s))
	defer srv.Close()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	opts := options{
		host: host, port: port, workers: 2, perWorker: 2,
		duration: 1500 * time.Millisecond, every: 20 * time.Millisecond,
		speed: 0.1, prefix: "bot",
	}
	stats, err := run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.connected.Load())
	assert.Zero(t, stats.failed.Load())
	assert.Greater(t, stats.sent.Load(), int64(4))
	assert.GreaterOrEqual(t, stats.received.Load(), int64(4*3))
	assert.Greater(t, testutil.ToFloat64(s.Metrics().Patches.WithLabelValues("applied")), 0.0)
	assert.Zero(t, testutil.ToFloat64(s.Metrics().Rejects.WithLabelValues("protocol")))

	require.Eventually(t, func() bool { return s.Info().Connections == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunFailsWithoutServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	opts := options{host: host, port: port, workers: 1, perWorker: 1, duration: time.Second, every: 10 * time.Millisecond}
	stats, err := run(context.Background(), opts)
	assert.Error(t, err)
	assert.Equal(t, int64(1), stats.failed.Load())
}
