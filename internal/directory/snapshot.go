package directory

import (
	"slices"
	"sort"

	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// Supergroup is a named, ordered folder of tab groups.
type Supergroup struct {
	SupergroupID int           `json:"supergroupId"`
	Name         string        `json:"name"`
	Members      []tabgroup.ID `json:"members"`
}

// Storage is the persisted directory value: supergroup id to supergroup.
type Storage map[tabgroup.ID]Supergroup

// Clone returns a deep copy of s.
func (s Storage) Clone() Storage {
	if s == nil {
		return nil
	}
	out := make(Storage, len(s))
	for k, sg := range s {
		sg.Members = slices.Clone(sg.Members)
		if sg.Members == nil {
			sg.Members = []tabgroup.ID{}
		}
		out[k] = sg
	}
	return out
}

// Snapshot is an immutable view of the directory at one point in time.
type Snapshot struct {
	value   Storage
	parents map[tabgroup.ID]tabgroup.ID
	rank    map[tabgroup.ID]int
}

// NewSnapshot captures a deep copy of v. The root supergroup is synthesized
// if v lacks it.
func NewSnapshot(v Storage) *Snapshot {
	value := v.Clone()
	if value == nil {
		value = Storage{}
	}
	if _, ok := value[tabgroup.Root]; !ok {
		value[tabgroup.Root] = Supergroup{SupergroupID: 0, Members: []tabgroup.ID{}}
	}

	keys := make([]tabgroup.ID, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := &Snapshot{value: value, parents: make(map[tabgroup.ID]tabgroup.ID)}
	for _, k := range keys {
		for _, m := range value[k].Members {
			if _, seen := s.parents[m]; !seen {
				s.parents[m] = k
			}
		}
	}

	order := s.ContainerOrder()
	s.rank = make(map[tabgroup.ID]int, len(order))
	for i, id := range order {
		s.rank[id] = i
	}
	return s
}

// Value returns a deep copy of the captured directory.
func (s *Snapshot) Value() Storage {
	return s.value.Clone()
}

// Supergroup returns a copy of supergroup id.
func (s *Snapshot) Supergroup(id tabgroup.ID) (Supergroup, bool) {
	sg, ok := s.value[id]
	if !ok {
		return Supergroup{}, false
	}
	sg.Members = slices.Clone(sg.Members)
	return sg, true
}

// Supergroups returns the ids of all supergroups, root first, then in
// depth-first directory order.
func (s *Snapshot) Supergroups() []tabgroup.ID {
	var out []tabgroup.ID
	visited := make(map[tabgroup.ID]bool)
	var walk func(id tabgroup.ID)
	walk = func(id tabgroup.ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		out = append(out, id)
		for _, m := range s.value[id].Members {
			if _, ok := s.value[m]; ok {
				walk(m)
			}
		}
	}
	walk(tabgroup.Root)
	return out
}

// Members returns the direct members of supergroup id.
func (s *Snapshot) Members(id tabgroup.ID) []tabgroup.ID {
	return slices.Clone(s.value[id].Members)
}

// ParentTabGroupID returns the supergroup containing id. The root has no
// parent.
func (s *Snapshot) ParentTabGroupID(id tabgroup.ID) (tabgroup.ID, bool) {
	p, ok := s.parents[id]
	return p, ok
}

// HasDescendant reports whether candidate is nested anywhere below
// ancestor. A tab group is not its own descendant.
func (s *Snapshot) HasDescendant(ancestor, candidate tabgroup.ID) bool {
	visited := map[tabgroup.ID]bool{ancestor: true}
	stack := slices.Clone(s.value[ancestor].Members)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == candidate {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, s.value[id].Members...)
	}
	return false
}

// ChildContainers expands id into the cookie store ids below it, in
// directory order. A cookie store id expands to itself.
func (s *Snapshot) ChildContainers(id tabgroup.ID) []string {
	if tabgroup.IsCookieStore(id) {
		return []string{id}
	}
	var out []string
	visited := make(map[tabgroup.ID]bool)
	var walk func(id tabgroup.ID)
	walk = func(id tabgroup.ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, m := range s.value[id].Members {
			if tabgroup.IsCookieStore(m) {
				out = append(out, m)
				continue
			}
			walk(m)
		}
	}
	walk(id)
	return out
}

// ContainerOrder is the global container order: every cookie store id
// below the root, depth first.
func (s *Snapshot) ContainerOrder() []string {
	return s.ChildContainers(tabgroup.Root)
}

// Compare orders cookie store ids by directory position. Ids the directory
// does not know sort after known ones and compare equal to each other.
func (s *Snapshot) Compare(a, b string) int {
	ra, aok := s.rank[a]
	rb, bok := s.rank[b]
	switch {
	case aok && bok:
		return ra - rb
	case aok:
		return -1
	case bok:
		return 1
	default:
		return 0
	}
}

// SortContainers sorts ids in place, stably, by directory order.
func (s *Snapshot) SortContainers(ids []string) {
	slices.SortStableFunc(ids, s.Compare)
}
