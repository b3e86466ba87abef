package fixture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/st3v3nmw/replcheck/internal/cluster"
)

// eventually checks that the condition becomes true within the given period.
func eventually(ctx context.Context, condition func() bool, timeout, pollInterval time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}
	}

	return false
}

// healthCheck asks a reference node for its health document.
type healthCheck struct {
	client   *http.Client
	user     string
	password string
}

// check returns nil when the node at base reports status UP under the
// expected node name.
func (p healthCheck) check(ctx context.Context, base, node string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+cluster.HealthPath, nil)
	if err != nil {
		return err
	}

	if p.user != "" {
		req.SetBasicAuth(p.user, p.password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if status := gjson.GetBytes(body, "status").String(); status != "UP" {
		return fmt.Errorf("node status is %q", status)
	}

	if got := gjson.GetBytes(body, "node").String(); got != node {
		return fmt.Errorf("expected node %q on %s, found %q", node, base, got)
	}

	return nil
}

// waitHealthy polls until the node is healthy or timeout elapses and returns
// the last check error on failure.
func (p healthCheck) waitHealthy(ctx context.Context, base, node string, timeout time.Duration) error {
	var last error
	ok := eventually(ctx, func() bool {
		last = p.check(ctx, base, node)
		return last == nil
	}, timeout, pollInterval)

	if ok {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return fmt.Errorf("node %s at %s not healthy after %s: %w", node, base, timeout, last)
}
