package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Manager rotates outbound title fetches across a fixed list of proxies.
type Manager struct {
	proxies    []*url.URL
	mu         sync.Mutex
	proxyIndex int
}

// NewManager parses proxyURLs. Blank entries are skipped; an empty list yields a manager
// that never proxies.
func NewManager(proxyURLs []string) (*Manager, error) {
	m := &Manager{}
	for _, raw := range proxyURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q: scheme and host are required", raw)
		}
		m.proxies = append(m.proxies, u)
	}
	return m, nil
}

// Len returns the number of configured proxies.
func (m *Manager) Len() int {
	return len(m.proxies)
}

// GetProxy returns a proxy URL from the list, rotating sequentially.
func (m *Manager) GetProxy() *url.URL {
	if len(m.proxies) == 0 {
		return nil // No proxy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	proxy := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return proxy
}

// ProxyFunc adapts the manager to http.Transport.Proxy. With no proxies configured it
// defers to the environment.
func (m *Manager) ProxyFunc() func(*http.Request) (*url.URL, error) {
	if len(m.proxies) == 0 {
		return http.ProxyFromEnvironment
	}
	return func(*http.Request) (*url.URL, error) {
		return m.GetProxy(), nil
	}
}
