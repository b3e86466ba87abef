package session

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultHandlerPath is where the session handler is mounted on every node.
const DefaultHandlerPath = "/session"

// Endpoint is one node of the cluster. It is immutable once constructed.
type Endpoint struct {
	name        string
	base        *url.URL
	handlerPath string
}

// NewEndpoint resolves base into an endpoint whose URI is base + handlerPath.
func NewEndpoint(name, base, handlerPath string) (Endpoint, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid address %q for %s: %w", base, name, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("address %q for %s must be an absolute http(s) URL", base, name)
	}

	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("address %q for %s has no host", base, name)
	}

	if handlerPath == "" {
		handlerPath = DefaultHandlerPath
	}

	if !strings.HasPrefix(handlerPath, "/") {
		handlerPath = "/" + handlerPath
	}

	return Endpoint{name: name, base: u, handlerPath: handlerPath}, nil
}

// NewEndpoints names addresses A, B, C... in order.
func NewEndpoints(addresses []string, handlerPath string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(addresses))
	for i, addr := range addresses {
		ep, err := NewEndpoint(Name(i), addr, handlerPath)
		if err != nil {
			return nil, err
		}

		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}

// Name returns the letter used for the i-th endpoint.
func Name(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}

	return fmt.Sprintf("N%d", i+1)
}

// Name returns the endpoint label used in reports.
func (e Endpoint) Name() string {
	return e.name
}

// URI returns the full request target.
func (e Endpoint) URI() string {
	u := *e.base
	u.Path = strings.TrimSuffix(u.Path, "/") + e.handlerPath
	return u.String()
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (%s)", e.name, e.URI())
}
