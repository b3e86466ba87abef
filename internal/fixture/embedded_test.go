package fixture

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st3v3nmw/replcheck/internal/cluster"
	"github.com/st3v3nmw/replcheck/internal/failover"
	"github.com/st3v3nmw/replcheck/internal/session"
)

func TestEmbeddedFailover(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dsn    func(t *testing.T) string
	}{
		{name: "Memory Store", driver: cluster.DriverMemory},
		{
			name:   "SQLite Store",
			driver: cluster.DriverSQLite,
			dsn:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "sessions.db") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := EmbeddedConfig{Nodes: 2, StoreDriver: tt.driver}
			if tt.dsn != nil {
				cfg.StoreDSN = tt.dsn(t)
			}

			opts := failover.DefaultOptions()
			opts.GracePeriod = 0

			var out bytes.Buffer
			err := failover.NewSuite("Embedded", NewEmbedded(cfg), session.DefaultHandlerPath, opts).
				Output(&out).
				Run(context.Background())

			require.NoError(t, err, out.String())
			assert.Contains(t, out.String(), "PASSED")
		})
	}
}

func TestEmbeddedThreeNodes(t *testing.T) {
	fx := NewEmbedded(EmbeddedConfig{Nodes: 3, HandlerPath: "/counter"})

	opts := failover.DefaultOptions()
	opts.GracePeriod = 0
	opts.Schedule = failover.Schedule{Rounds: 2, Burst: 3}
	opts.VerifyAll = true

	var out bytes.Buffer
	err := failover.NewSuite("Three Nodes", fx, "/counter", opts).Output(&out).Run(context.Background())
	require.NoError(t, err, out.String())
}

func TestEmbeddedSetup(t *testing.T) {
	fx := NewEmbedded(EmbeddedConfig{Nodes: 2})

	addrs, err := fx.Setup(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.NotEqual(t, addrs[0], addrs[1])

	hc := healthCheck{client: &http.Client{Timeout: time.Second}}
	assert.NoError(t, hc.check(context.Background(), addrs[0], "node-1"))
	assert.NoError(t, hc.check(context.Background(), addrs[1], "node-2"))

	require.NoError(t, fx.Teardown())

	_, err = http.Get(addrs[0] + session.DefaultHandlerPath)
	assert.Error(t, err)

	// A second teardown has nothing left to release
	assert.NoError(t, fx.Teardown())
}

func TestEmbeddedSetupErrors(t *testing.T) {
	_, err := NewEmbedded(EmbeddedConfig{Nodes: 1}).Setup(context.Background())
	assert.ErrorContains(t, err, "at least 2 nodes")

	fx := NewEmbedded(EmbeddedConfig{Nodes: 2, StoreDriver: "etcd"})
	_, err = fx.Setup(context.Background())
	assert.ErrorContains(t, err, "unknown store driver")
	assert.NoError(t, fx.Teardown())
}
