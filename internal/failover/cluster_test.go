package failover_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/st3v3nmw/replcheck/internal/session"
)

// fakeCluster is one logical session shared by every node, with hooks to
// corrupt individual responses.
type fakeCluster struct {
	mu sync.Mutex

	sessionID string
	value     int
	live      bool
	gets      int
	order     []string

	// Keyed by the 1-based index of the GET across the run
	valueAt   map[int]string
	sessionAt map[int]string
	statusAt  map[int]int

	deletedID       string
	omitDeletedID   bool
	keepAfterDelete bool
	heads           []string
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		valueAt:   map[int]string{},
		sessionAt: map[int]string{},
		statusAt:  map[int]int{},
	}
}

func (c *fakeCluster) handler(node string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			c.gets++
			c.order = append(c.order, node)

			if !c.live {
				c.live = true
				c.sessionID = "session-1"
				c.value = 0
			}

			value := strconv.Itoa(c.value)
			c.value++

			if v, ok := c.valueAt[c.gets]; ok {
				value = v
			}

			id := c.sessionID
			if v, ok := c.sessionAt[c.gets]; ok {
				id = v
			}

			if value != "" {
				w.Header().Set(session.HeaderValue, value)
			}
			w.Header().Set(session.HeaderSessionID, id)

			if status, ok := c.statusAt[c.gets]; ok {
				w.WriteHeader(status)
			}
		case http.MethodDelete:
			id := c.sessionID
			if c.deletedID != "" {
				id = c.deletedID
			}

			if c.live && !c.omitDeletedID {
				w.Header().Set(session.HeaderSessionID, id)
			}

			if !c.keepAfterDelete {
				c.live = false
			}
		case http.MethodHead:
			c.heads = append(c.heads, node)
			if c.live {
				w.Header().Set(session.HeaderSessionID, c.sessionID)
			}
		}
	})
}

// start serves the cluster on n nodes and returns their endpoints.
func (c *fakeCluster) start(t *testing.T, n int) []session.Endpoint {
	t.Helper()

	addrs := c.serve(t, n)
	endpoints, err := session.NewEndpoints(addrs, session.DefaultHandlerPath)
	if err != nil {
		t.Fatal(err)
	}

	return endpoints
}

func (c *fakeCluster) serve(t *testing.T, n int) []string {
	t.Helper()

	addrs := make([]string, 0, n)
	for i := range n {
		server := httptest.NewServer(c.handler(session.Name(i)))
		t.Cleanup(server.Close)
		addrs = append(addrs, server.URL)
	}

	return addrs
}

func (c *fakeCluster) Gets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func (c *fakeCluster) Order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

func (c *fakeCluster) Heads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.heads...)
}

func (c *fakeCluster) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}
