package firefox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

// Built-in containers carry a localisation id instead of a name.
var builtinNames = map[string]string{
	"userContextPersonal.label": "Personal",
	"userContextWork.label":     "Work",
	"userContextBanking.label":  "Banking",
	"userContextShopping.label": "Shopping",
}

type rawIdentity struct {
	UserContextID int    `json:"userContextId"`
	Public        bool   `json:"public"`
	Icon          string `json:"icon"`
	Color         string `json:"color"`
	Name          string `json:"name"`
	L10nID        string `json:"l10nID"`
}

type rawContainers struct {
	Identities []rawIdentity `json:"identities"`
}

// ParseContainers parses containers.json. Internal identities (those not
// marked public) are skipped.
func ParseContainers(data []byte) ([]types.Container, error) {
	var raw rawContainers
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse containers JSON: %w", err)
	}
	var out []types.Container
	for _, id := range raw.Identities {
		if !id.Public || id.UserContextID <= 0 {
			continue
		}
		name := id.Name
		if name == "" {
			name = builtinNames[id.L10nID]
		}
		out = append(out, types.Container{
			CookieStoreID: tabgroup.CookieStoreForUserContext(id.UserContextID),
			Name:          name,
			Icon:          id.Icon,
			IconURL:       "resource://usercontext-content/" + id.Icon + ".svg",
			Color:         id.Color,
		})
	}
	return out, nil
}

// ReadContainersFile reads containers.json from a profile. A profile that
// never used containers has no file, which reads as no containers.
func ReadContainersFile(profileDir string) ([]types.Container, error) {
	data, err := os.ReadFile(filepath.Join(profileDir, "containers.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseContainers(data)
}
