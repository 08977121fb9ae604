// Package site maps tab URLs to their registrable domain.
package site

import (
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Of returns the registrable domain (eTLD+1) of rawURL. URLs without a
// host, such as about: pages, map to their scheme followed by a colon.
// IP addresses and single-label hosts map to the host itself.
func Of(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		if u.Scheme == "" {
			return ""
		}
		return u.Scheme + ":"
	}
	if strings.HasPrefix(u.Scheme, "moz-extension") {
		return u.Scheme + "://" + host
	}
	if strings.Contains(host, ":") || !strings.Contains(host, ".") || isIPv4(host) {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// the host is itself a public suffix
		return host
	}
	return domain
}

func isIPv4(host string) bool {
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// Classifier caches registrable domains per URL.
type Classifier struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewClassifier returns an empty Classifier.
func NewClassifier() *Classifier {
	return &Classifier{cache: make(map[string]string)}
}

// Classify returns the registrable domain of every URL in urls.
func (c *Classifier) Classify(urls []string) map[string]string {
	out := make(map[string]string, len(urls))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range urls {
		d, ok := c.cache[u]
		if !ok {
			d = Of(u)
			c.cache[u] = d
		}
		out[u] = d
	}
	return out
}

// known reports whether rawURL has been classified.
func (c *Classifier) known(rawURL string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[rawURL]
	return ok
}

// Forget drops every cached URL not in keep.
func (c *Classifier) Forget(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for u := range c.cache {
		if !keep[u] {
			delete(c.cache, u)
		}
	}
}
