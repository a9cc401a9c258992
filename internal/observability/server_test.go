// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fuseforge/fuseforge/internal/fusion"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	srv := NewServer("127.0.0.1:0", ready)
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // local test server
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := startServer(t, nil)

	// Label vectors only appear once observed.
	fusion.Fusions.WithLabelValues(fusion.StatusSuccess).Inc()

	status, body := get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "fuseforge_fusions_total")
}

func TestServer_Liveness(t *testing.T) {
	srv := startServer(t, nil)

	status, body := get(t, "http://"+srv.Addr()+"/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	ready := false
	srv := startServer(t, func() bool { return ready })

	status, _ := get(t, "http://"+srv.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	ready = true
	status, _ = get(t, "http://"+srv.Addr()+"/healthz/readiness")
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_DoubleStartRejected(t *testing.T) {
	srv := startServer(t, nil)

	_, err := srv.Start()
	require.Error(t, err)
}

func TestServer_StopWhenNotRunning(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil)
	require.NoError(t, srv.Stop(context.Background()))
}
