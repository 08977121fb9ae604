// Package tabgroup classifies tab-group identifiers.
//
// A tab-group id is either a native cookie store id (a container) or a
// synthetic supergroup id. Parse is total over well-formed ids: every one of
// them is exactly one of the two kinds.
package tabgroup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a container (by cookie store id) or a supergroup.
type ID = string

const (
	DefaultCookieStore = "firefox-default"
	PrivateCookieStore = "firefox-private"

	containerPrefix  = "firefox-container-"
	supergroupPrefix = "supergroup-"

	// Root is the supergroup that every other tab group hangs off.
	Root ID = supergroupPrefix + "0"
)

// ErrInvalidID is returned for strings that are not tab-group ids.
var ErrInvalidID = errors.New("invalid tab group id")

// Kind says which variant a tab-group id is.
type Kind int

const (
	KindCookieStore Kind = iota + 1
	KindSupergroup
)

func (k Kind) String() string {
	switch k {
	case KindCookieStore:
		return "cookieStore"
	case KindSupergroup:
		return "supergroup"
	default:
		return "unknown"
	}
}

// Attributes is the parsed form of a tab-group id.
type Attributes struct {
	ID   ID
	Kind Kind

	// Cookie store fields.
	CookieStoreID string
	UserContextID int // 0 for the default and private stores
	Private       bool

	// Supergroup fields.
	SupergroupID int
}

// IsCookieStore reports whether the id names a container.
func (a Attributes) IsCookieStore() bool { return a.Kind == KindCookieStore }

// IsSupergroup reports whether the id names a supergroup.
func (a Attributes) IsSupergroup() bool { return a.Kind == KindSupergroup }

// IsRoot reports whether the id is the root supergroup.
func (a Attributes) IsRoot() bool { return a.Kind == KindSupergroup && a.SupergroupID == 0 }

// Parse classifies id.
func Parse(id ID) (Attributes, error) {
	switch {
	case id == DefaultCookieStore:
		return Attributes{ID: id, Kind: KindCookieStore, CookieStoreID: id}, nil
	case id == PrivateCookieStore:
		return Attributes{ID: id, Kind: KindCookieStore, CookieStoreID: id, Private: true}, nil
	case strings.HasPrefix(id, containerPrefix):
		n, err := parseNonNegative(strings.TrimPrefix(id, containerPrefix))
		if err != nil || n == 0 {
			return Attributes{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
		return Attributes{ID: id, Kind: KindCookieStore, CookieStoreID: id, UserContextID: n}, nil
	case strings.HasPrefix(id, supergroupPrefix):
		n, err := parseNonNegative(strings.TrimPrefix(id, supergroupPrefix))
		if err != nil {
			return Attributes{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
		return Attributes{ID: id, Kind: KindSupergroup, SupergroupID: n}, nil
	}
	return Attributes{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
}


// IsSupergroup reports whether id parses as a supergroup id.
func IsSupergroup(id ID) bool {
	a, err := Parse(id)
	return err == nil && a.IsSupergroup()
}

// IsCookieStore reports whether id parses as a cookie store id.
func IsCookieStore(id ID) bool {
	a, err := Parse(id)
	return err == nil && a.IsCookieStore()
}

// Supergroup returns the tab-group id of supergroup n.
func Supergroup(n int) (ID, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: negative supergroup id %d", ErrInvalidID, n)
	}
	return supergroupPrefix + strconv.Itoa(n), nil
}

// CookieStoreForUserContext maps a legacy integer container id to its cookie
// store id. Negative ids are clamped to 0, the default store.
func CookieStoreForUserContext(userContextID int) ID {
	if userContextID <= 0 {
		return DefaultCookieStore
	}
	return containerPrefix + strconv.Itoa(userContextID)
}

func parseNonNegative(s string) (int, error) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
