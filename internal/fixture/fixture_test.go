package fixture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st3v3nmw/replcheck/internal/cluster"
	"github.com/st3v3nmw/replcheck/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		want    any
		wantErr bool
	}{
		{name: "External", mode: config.ModeExternal, want: &External{}},
		{name: "Embedded", mode: config.ModeEmbedded, want: &Embedded{}},
		{name: "Forked", mode: config.ModeForked, want: &Forked{}},
		{name: "Unknown", mode: "docker", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cluster.Mode = tt.mode

			fx, err := New(cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.IsType(t, tt.want, fx)
		})
	}
}

func TestExternal(t *testing.T) {
	addrs := []string{"http://a:8080", "http://b:8080"}
	fx := NewExternal(addrs)

	got, err := fx.Setup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, addrs, got)
	assert.NoError(t, fx.Teardown())

	_, err = NewExternal(nil).Setup(context.Background())
	assert.Error(t, err)
}

func TestForkedArgs(t *testing.T) {
	fx := NewForked(ForkedConfig{Nodes: 2, HandlerPath: "/counter"})

	assert.Equal(t, []string{
		"serve",
		"--node=node-1",
		"--store=sqlite",
		"--store-dsn=/tmp/run/sessions.db",
		"--handler-path=/counter",
	}, fx.args("node-1", "/tmp/run/sessions.db"))

	fx = NewForked(ForkedConfig{Nodes: 2, StoreDriver: cluster.DriverRedis})
	assert.Equal(t, []string{"serve", "--node=node-2", "--store=redis"}, fx.args("node-2", ""))
}

func TestForkedSetupErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     ForkedConfig
		wantErr string
	}{
		{
			name:    "One Node",
			cfg:     ForkedConfig{Nodes: 1, WorkingDir: dir},
			wantErr: "at least 2 nodes",
		},
		{
			name:    "Memory Store",
			cfg:     ForkedConfig{Nodes: 2, WorkingDir: dir, StoreDriver: cluster.DriverMemory},
			wantErr: "memory store",
		},
		{
			name:    "Missing Command",
			cfg:     ForkedConfig{Nodes: 2, WorkingDir: dir, Command: filepath.Join(dir, "no-such-server")},
			wantErr: "failed to start node-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := NewForked(tt.cfg)
			_, err := fx.Setup(context.Background())
			assert.ErrorContains(t, err, tt.wantErr)
			assert.NoError(t, fx.Teardown())
		})
	}
}
