package server

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mongo-user-service/cmd/api/di"
	"mongo-user-service/internal/config"
)

func testConfig(t *testing.T, httpPort string, grpcEnabled bool) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "users.db"),
		},
		DB:     config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: 60, ConnMaxIdleTime: 60},
		App:    config.AppConfig{HTTPPort: httpPort, GRPCEnabled: grpcEnabled, GRPCPort: freePort(t), ShutdownTimeoutSeconds: 1},
		Logger: config.LoggerConfig{Level: "info", SlowQuerySeconds: 1, ServiceName: "user-api"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	ctx := context.Background()
	l := zaptest.NewLogger(t)

	c, err := di.NewContainer(ctx, cfg, l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(ctx) })

	return New(cfg, l, c)
}

func freePort(t *testing.T) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return strconv.Itoa(port)
}

func TestNew_GRPCDisabledByDefault(t *testing.T) {
	port := freePort(t)
	s := newTestServer(t, testConfig(t, port, false))

	assert.NotNil(t, s.HTTP)
	assert.Nil(t, s.GRPC)
	assert.Equal(t, ":"+port, s.HTTP.Addr)
	assert.Equal(t, 2*time.Second, s.HTTP.ReadHeaderTimeout)
}

func TestNew_GRPCEnabled(t *testing.T) {
	s := newTestServer(t, testConfig(t, freePort(t), true))

	require.NotNil(t, s.GRPC)
	assert.Contains(t, s.GRPC.GetServiceInfo(), "user.v1.UserService")
}

func TestServer_StartServesUntilShutdown(t *testing.T) {
	port := freePort(t)
	s := newTestServer(t, testConfig(t, port, true))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/ok")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestServer_StartListenError(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	port := strconv.Itoa(lis.Addr().(*net.TCPAddr).Port)
	s := newTestServer(t, testConfig(t, port, false))
	s.HTTP.Addr = "127.0.0.1:" + port

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestWithSignal_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := WithSignal(parent, zaptest.NewLogger(t))
	defer stop()

	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled with parent")
	}
}

func TestWithSignal_Stop(t *testing.T) {
	ctx, stop := WithSignal(context.Background(), zaptest.NewLogger(t))
	stop()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWithSignal_StopIsIdempotent(t *testing.T) {
	_, stop := WithSignal(context.Background(), zaptest.NewLogger(t))
	stop()
	assert.NotPanics(t, func() { stop() })
}
