package firefox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/lotas/tabgruppen/internal/tabgroup"
	"github.com/lotas/tabgruppen/internal/types"
)

// mozlz4 header: 8-byte magic "mozLz40\x00"
var mozLz4Magic = []byte("mozLz40\x00")

// sessionFiles are tried in order: the live session, then the last closed one.
var sessionFiles = []string{"recovery.jsonlz4", "previous.jsonlz4"}

// DecompressMozLz4 decompresses data in Mozilla's mozlz4 format.
// The format is: 8-byte magic "mozLz40\x00" + 4-byte LE uint32 uncompressed size + lz4 block data.
func DecompressMozLz4(data []byte) ([]byte, error) {
	const headerSize = 12 // 8 magic + 4 size

	if len(data) < headerSize {
		return nil, fmt.Errorf("mozlz4: data too short (%d bytes)", len(data))
	}

	for i := 0; i < len(mozLz4Magic); i++ {
		if data[i] != mozLz4Magic[i] {
			return nil, fmt.Errorf("mozlz4: invalid header magic")
		}
	}

	uncompressedSize := binary.LittleEndian.Uint32(data[8:12])

	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(data[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: decompress failed: %w", err)
	}

	return dst[:n], nil
}

// CompressMozLz4 is the inverse of DecompressMozLz4.
func CompressMozLz4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, fmt.Errorf("mozlz4: compress failed: %w", err)
	}
	out := make([]byte, 0, 12+n)
	out = append(out, mozLz4Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, buf[:n]...), nil
}

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries       []rawEntry `json:"entries"`
	Index         int        `json:"index"`
	LastAccessed  int64      `json:"lastAccessed"`
	Image         string     `json:"image"`
	UserContextID int        `json:"userContextId"`
	Hidden        bool       `json:"hidden"`
	Pinned        bool       `json:"pinned"`
}

type rawWindow struct {
	Tabs      []rawTab `json:"tabs"`
	Selected  int      `json:"selected"` // 1-based index of the active tab
	IsPrivate bool     `json:"isPrivate"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession parses raw JSON session data. Windows and tabs get
// sequential ids starting at 1, since the browser's runtime ids are not
// persisted.
func ParseSession(data []byte) (*types.SessionData, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	sd := &types.SessionData{
		ParsedAt: time.Now(),
	}

	nextTab := 1
	for winIdx, window := range raw.Windows {
		w := types.Window{ID: winIdx + 1, Incognito: window.IsPrivate, Tabs: []types.Tab{}}
		for _, rt := range window.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}

			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			cookieStore := tabgroup.CookieStoreForUserContext(rt.UserContextID)
			if window.IsPrivate {
				cookieStore = tabgroup.PrivateCookieStore
			}
			w.Tabs = append(w.Tabs, types.Tab{
				ID:            nextTab,
				URL:           entry.URL,
				Title:         entry.Title,
				FavIconURL:    rt.Image,
				WindowID:      w.ID,
				Index:         len(w.Tabs),
				CookieStoreID: cookieStore,
				Incognito:     window.IsPrivate,
				Hidden:        rt.Hidden,
				Pinned:        rt.Pinned,
				LastAccessed:  rt.LastAccessed,
				GroupID:       types.NoGroup,
			})
			nextTab++
		}
		if s := window.Selected - 1; s >= 0 && s < len(w.Tabs) {
			w.Tabs[s].Active = true
		}
		sd.Windows = append(sd.Windows, w)
	}

	return sd, nil
}

func sessionPath(profileDir string) (string, error) {
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	for _, name := range sessionFiles {
		p := filepath.Join(backupDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no session file found in %s", backupDir)
}

// ReadSessionFile reads and parses a Firefox session recovery file from the given profile directory.
// It tries recovery.jsonlz4 first (active session), then previous.jsonlz4 (last closed session).
func ReadSessionFile(profileDir string) (*types.SessionData, error) {
	path, err := sessionPath(profileDir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	decompressed, err := DecompressMozLz4(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}

	return ParseSession(decompressed)
}
