package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/replcheck/internal/cluster"
	"github.com/st3v3nmw/replcheck/internal/failover"
	"github.com/st3v3nmw/replcheck/internal/fixture"
	"github.com/st3v3nmw/replcheck/internal/session"
)

// envServeNode turns the test binary into a replcheck node, so forked runs
// can start it as their server command.
const envServeNode = "REPLCHECK_TEST_SERVE_NODE"

func TestMain(m *testing.M) {
	if os.Getenv(envServeNode) != "" {
		cmd := &commands.Command{
			Name: "replcheck",
			Commands: []*commands.Command{
				{Name: "serve", Flags: ServeFlags(), Action: Serve},
			},
		}

		if err := cmd.Run(context.Background(), os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	os.Exit(m.Run())
}

// pidRecorder notes the process id each node reports once the cluster is up.
type pidRecorder struct {
	*fixture.Forked
	user     string
	password string

	pids      []int
	anonymous []int
}

func (r *pidRecorder) Setup(ctx context.Context) ([]string, error) {
	addrs, err := r.Forked.Setup(ctx)
	if err != nil {
		return nil, err
	}

	for _, addr := range addrs {
		status, _, err := health(ctx, addr, "", "")
		if err != nil {
			return nil, err
		}
		r.anonymous = append(r.anonymous, status)

		status, body, err := health(ctx, addr, r.user, r.password)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("health on %s returned %d", addr, status)
		}
		r.pids = append(r.pids, int(gjson.GetBytes(body, "pid").Int()))
	}

	return addrs, nil
}

func health(ctx context.Context, base, user, password string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+cluster.HealthPath, nil)
	if err != nil {
		return 0, nil, err
	}

	if user != "" {
		req.SetBasicAuth(user, password)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

func TestForkedCluster(t *testing.T) {
	if testing.Short() {
		t.Skip("starts node processes")
	}
	t.Setenv(envServeNode, "1")

	fx := &pidRecorder{
		Forked: fixture.NewForked(fixture.ForkedConfig{
			Nodes:           2,
			WorkingDir:      t.TempDir(),
			AdminUser:       "admin",
			AdminPassword:   "secret",
			StartTimeout:    20 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		}),
		user:     "admin",
		password: "secret",
	}

	opts := failover.DefaultOptions()
	opts.GracePeriod = 0

	var out bytes.Buffer
	err := failover.NewSuite("Forked", fx, session.DefaultHandlerPath, opts).
		Output(&out).
		Run(context.Background())
	require.NoError(t, err, out.String())

	// Credentials reached the nodes through the environment
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized}, fx.anonymous)

	require.Len(t, fx.pids, 2)
	assert.NotEqual(t, fx.pids[0], fx.pids[1])
	for _, pid := range fx.pids {
		assert.NotEqual(t, os.Getpid(), pid)

		// Each node led its own process group and none of it survived teardown
		assert.ErrorIs(t, syscall.Kill(-pid, 0), syscall.ESRCH)
	}
}

func TestRunForkedDefaultStore(t *testing.T) {
	if testing.Short() {
		t.Skip("starts node processes")
	}
	t.Setenv(envServeNode, "1")
	t.Chdir(t.TempDir())

	cmd := &commands.Command{Name: "run", Flags: RunFlags(), Action: Run, ExitErrHandler: keepRunning}
	err := cmd.Run(context.Background(), []string{"run", "--mode=forked", "--rounds=1", "--burst=2", "--grace=0s"})
	require.NoError(t, err)

	// The nodes shared a sqlite file inside the run directory
	matches, err := filepath.Glob(".replcheck/run-*/sessions.db")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
