package directory

import (
	"sort"

	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// Repair returns a well-formed forest built from raw.
//
// cookieStores lists every live cookie store in native order. legacyOrder
// is the old integer container ordering, used only to place containers the
// directory has never seen. The result always has a root, references only
// live cookie stores and existing supergroups, lists every tab group at
// most once, has no cycles, and places every live cookie store exactly
// once. Repair(Repair(x)) == Repair(x).
func Repair(raw Storage, cookieStores []string, legacyOrder []int) Storage {
	live := make(map[string]bool, len(cookieStores))
	for _, cs := range cookieStores {
		live[cs] = true
	}

	valid := make(Storage, len(raw))
	for key, sg := range raw {
		a, err := tabgroup.Parse(key)
		if err != nil || !a.IsSupergroup() || a.SupergroupID != sg.SupergroupID {
			continue
		}
		valid[key] = sg
	}

	out := make(Storage, len(valid)+1)
	for key, sg := range valid {
		out[key] = Supergroup{SupergroupID: sg.SupergroupID, Name: sg.Name, Members: []tabgroup.ID{}}
	}
	if _, ok := out[tabgroup.Root]; !ok {
		out[tabgroup.Root] = Supergroup{SupergroupID: 0, Members: []tabgroup.ID{}}
	}

	placed := map[tabgroup.ID]bool{tabgroup.Root: true}
	var walk func(key tabgroup.ID)
	walk = func(key tabgroup.ID) {
		kept := []tabgroup.ID{}
		for _, m := range valid[key].Members {
			if placed[m] {
				continue
			}
			if live[m] {
				placed[m] = true
				kept = append(kept, m)
				continue
			}
			if _, ok := out[m]; ok {
				placed[m] = true
				kept = append(kept, m)
				walk(m)
			}
		}
		sg := out[key]
		sg.Members = kept
		out[key] = sg
	}
	walk(tabgroup.Root)

	root := out[tabgroup.Root]

	var orphans []Supergroup
	for key, sg := range out {
		if !placed[key] {
			orphans = append(orphans, sg)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].SupergroupID < orphans[j].SupergroupID })
	for _, sg := range orphans {
		key, _ := tabgroup.Supergroup(sg.SupergroupID)
		if placed[key] {
			continue
		}
		placed[key] = true
		root.Members = append(root.Members, key)
		walk(key)
	}

	for _, uc := range legacyOrder {
		cs := tabgroup.CookieStoreForUserContext(uc)
		if live[cs] && !placed[cs] {
			placed[cs] = true
			root.Members = append(root.Members, cs)
		}
	}
	for _, cs := range cookieStores {
		if !placed[cs] {
			placed[cs] = true
			root.Members = append(root.Members, cs)
		}
	}
	out[tabgroup.Root] = root
	return out
}
