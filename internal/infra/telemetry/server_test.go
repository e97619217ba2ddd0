package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

func TestStartHTTPServer_Metrics(t *testing.T) {
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.ObserveTurn(domain.TurnStatusAnswered, 50*time.Millisecond)

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableMetrics: true,
			Registry:      registry,
		}, zap.NewNop())
	}()

	waitForHTTPStatus(t, fmt.Sprintf("http://%s/metrics", addr), http.StatusOK, false)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "jitd_turn_duration_seconds")

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_Healthz(t *testing.T) {
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := NewHealthTracker()
	beat := tracker.Register("config_watch", time.Hour)
	beat.Beat()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableHealthz: true,
			Health:        tracker,
		}, zap.NewNop())
	}()

	waitForHTTPStatus(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusOK, true)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_HealthzDegraded(t *testing.T) {
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker := NewHealthTracker()
	tracker.Register("stalled-loop", time.Millisecond)

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          addr,
			EnableHealthz: true,
			Health:        tracker,
		}, zap.NewNop())
	}()

	waitForHTTPStatus(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusServiceUnavailable, true)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_NothingEnabled(t *testing.T) {
	err := StartHTTPServer(context.Background(), HTTPServerOptions{Addr: "127.0.0.1:0"}, zap.NewNop())
	assert.NoError(t, err)
}

func TestStartHTTPServer_AddrInUse(t *testing.T) {
	listener := mustListen(t)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := StartHTTPServer(ctx, HTTPServerOptions{
		Addr:          listener.Addr().String(),
		EnableMetrics: true,
		Registry:      prometheus.NewRegistry(),
	}, zap.NewNop())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "address already in use"))
}

func TestServe_UsesConfig(t *testing.T) {
	addr := freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- Serve(ctx, domain.ObservabilityConfig{
			ListenAddress: addr,
			EnableHealthz: true,
		}, NewHealthTracker(), zap.NewNop())
	}()

	waitForHTTPStatus(t, fmt.Sprintf("http://%s/healthz", addr), http.StatusOK, true)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	return listener
}

func freeAddr(t *testing.T) string {
	t.Helper()
	listener := mustListen(t)
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

func waitForHTTPStatus(t *testing.T, url string, status int, expectJSON bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != status {
			return false
		}
		if expectJSON {
			var report HealthReport
			if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
				return false
			}
			if status == http.StatusOK && report.Status != "ok" {
				return false
			}
		}
		return true
	}, 2*time.Second, 25*time.Millisecond)
}
