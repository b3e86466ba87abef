// Package cluster is a reference session service: every node serves the
// session handler over a shared Store, so a session created on one node is
// visible on all of them. It stands in for a real replicated container when
// the harness runs without one.
package cluster

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/st3v3nmw/replcheck/internal/session"
)

// CookieName carries the session id between requests.
const CookieName = "JSESSIONID"

// HealthPath reports node status as JSON to the administrative user.
const HealthPath = "/admin/health"

// NodeConfig configures one node.
type NodeConfig struct {
	Name          string
	HandlerPath   string
	AdminUser     string
	AdminPassword string
	Logger        log.Logger
}

// Health is the body served on HealthPath.
type Health struct {
	Status   string `json:"status"`
	Node     string `json:"node"`
	Sessions int    `json:"sessions"`
	PID      int    `json:"pid"`
}

// Node serves the session handler for one member of the cluster.
type Node struct {
	name   string
	store  Store
	echo   *echo.Echo
	logger log.Logger
}

// NewNode builds the routes of a node backed by store.
func NewNode(cfg NodeConfig, store Store) *Node {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.WithPrefix(logger, "component", "node", "node", cfg.Name)

	handlerPath := cfg.HandlerPath
	if handlerPath == "" {
		handlerPath = session.DefaultHandlerPath
	}

	n := &Node{
		name:   cfg.Name,
		store:  store,
		echo:   echo.New(),
		logger: logger,
	}

	n.echo.HideBanner = true
	n.echo.HidePort = true
	n.echo.Use(n.logRequests)

	n.echo.GET(handlerPath, n.get)
	n.echo.HEAD(handlerPath, n.head)
	n.echo.DELETE(handlerPath, n.delete)

	admin := n.echo.Group("/admin")
	if cfg.AdminUser != "" {
		admin.Use(middleware.BasicAuth(func(user, password string, _ echo.Context) (bool, error) {
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.AdminUser)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.AdminPassword)) == 1
			return userOK && passOK, nil
		}))
	}
	admin.GET("/health", n.health)

	return n
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// ServeHTTP lets the node be mounted on any server, httptest included.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.echo.ServeHTTP(w, r)
}

// Serve accepts connections on l until Shutdown.
func (n *Node) Serve(l net.Listener) error {
	n.echo.Listener = l

	level.Info(n.logger).Log("msg", "node listening", "addr", l.Addr().String())
	if err := n.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("node %s: %w", n.name, err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (n *Node) Shutdown(ctx context.Context) error {
	return n.echo.Shutdown(ctx)
}

// get returns the counter of the caller's session, creating the session on
// first use, and increments it.
func (n *Node) get(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok, err := n.resolve(c)
	if err != nil {
		return err
	}

	if !ok {
		if id, err = n.create(c); err != nil {
			return err
		}
	}

	value, err := n.store.Increment(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Invalidated between resolve and increment
		if id, err = n.create(c); err != nil {
			return err
		}
		value, err = n.store.Increment(ctx, id)
	}
	if err != nil {
		return err
	}

	h := c.Response().Header()
	h.Set(session.HeaderValue, strconv.Itoa(value))
	h.Set(session.HeaderSessionID, id)

	return c.NoContent(http.StatusOK)
}

// head exposes the session id only when the caller's session is live.
func (n *Node) head(c echo.Context) error {
	id, ok, err := n.resolve(c)
	if err != nil {
		return err
	}

	if ok {
		c.Response().Header().Set(session.HeaderSessionID, id)
	}

	return c.NoContent(http.StatusOK)
}

// delete invalidates the caller's session on every node sharing the store.
func (n *Node) delete(c echo.Context) error {
	id, ok, err := n.resolve(c)
	if err != nil {
		return err
	}

	if ok {
		if _, err := n.store.Invalidate(c.Request().Context(), id); err != nil {
			return err
		}

		// The cookie is left in place; later requests carrying it must find
		// the session gone on every node.
		c.Response().Header().Set(session.HeaderSessionID, id)
		level.Info(n.logger).Log("msg", "session invalidated", "session", id)
	}

	return c.NoContent(http.StatusOK)
}

func (n *Node) health(c echo.Context) error {
	count, err := n.store.Count(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, Health{Status: "UP", Node: n.name, Sessions: count, PID: os.Getpid()})
}

// resolve finds the live session named by the request cookie.
func (n *Node) resolve(c echo.Context) (string, bool, error) {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false, nil
	}

	ok, err := n.store.Exists(c.Request().Context(), cookie.Value)
	if err != nil {
		return "", false, err
	}

	return cookie.Value, ok, nil
}

func (n *Node) create(c echo.Context) (string, error) {
	id, err := n.store.Create(c.Request().Context())
	if err != nil {
		return "", err
	}

	c.SetCookie(&http.Cookie{Name: CookieName, Value: id, Path: "/", HttpOnly: true})
	level.Debug(n.logger).Log("msg", "session created", "session", id)

	return id, nil
}

func (n *Node) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		level.Debug(n.logger).Log(
			"msg", "request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
		)

		return nil
	}
}
