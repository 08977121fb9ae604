package visibility

import (
	"fmt"
	"net/url"
	"strings"
)

// IndexTabPath is the extension page that renders placeholder tabs.
const IndexTabPath = "/index-tab/index.html"

// Placeholder is the display metadata a placeholder tab carries in its URL.
type Placeholder struct {
	Title   string
	Icon    string
	Color   string
	IconURL string
}

// IndexTabURL builds the URL of a placeholder tab. base is the extension
// origin, e.g. moz-extension://<uuid>.
func IndexTabURL(base string, p Placeholder) string {
	v := url.Values{}
	v.Set("i", p.Icon)
	v.Set("t", p.Title)
	v.Set("c", p.Color)
	v.Set("iu", p.IconURL)
	return strings.TrimSuffix(base, "/") + IndexTabPath + "#" + v.Encode()
}

// IsIndexTabURL reports whether rawURL is a placeholder tab URL.
func IsIndexTabURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "moz-extension" && u.Host != "" && u.Path == IndexTabPath
}

// IsIndexTabURLFrom is IsIndexTabURL restricted to pages served from base.
// An empty base accepts any extension origin.
func IsIndexTabURLFrom(base, rawURL string) bool {
	if !IsIndexTabURL(rawURL) {
		return false
	}
	if base == "" {
		return true
	}
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	u, _ := url.Parse(rawURL)
	return strings.EqualFold(u.Scheme, b.Scheme) && strings.EqualFold(u.Host, b.Host)
}

// ParseIndexTabURL recovers the metadata from a placeholder tab URL.
func ParseIndexTabURL(rawURL string) (Placeholder, error) {
	if !IsIndexTabURL(rawURL) {
		return Placeholder{}, fmt.Errorf("not an index tab url: %q", rawURL)
	}
	u, _ := url.Parse(rawURL)
	v, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return Placeholder{}, fmt.Errorf("parse index tab fragment: %w", err)
	}
	return Placeholder{
		Title:   v.Get("t"),
		Icon:    v.Get("i"),
		Color:   v.Get("c"),
		IconURL: v.Get("iu"),
	}, nil
}

// IndexTabMode says when placeholder tabs are used.
type IndexTabMode string

const (
	// IndexTabNever hides groups without placeholders.
	IndexTabNever IndexTabMode = "never"
	// IndexTabCollapsed shows a placeholder while a group is hidden.
	IndexTabCollapsed IndexTabMode = "collapsed"
	// IndexTabAlways keeps a placeholder once created, even after showing.
	IndexTabAlways IndexTabMode = "always"
)

// ParseIndexTabMode validates a mode name.
func ParseIndexTabMode(s string) (IndexTabMode, error) {
	switch m := IndexTabMode(s); m {
	case IndexTabNever, IndexTabCollapsed, IndexTabAlways:
		return m, nil
	}
	return "", fmt.Errorf("unknown index tab mode %q (want never, collapsed or always)", s)
}
