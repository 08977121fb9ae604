package export

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Markdown formats the document as nested headings with one list item per
// tab.
func Markdown(doc Document) string {
	var b strings.Builder

	title := "Tab groups"
	if doc.Profile != "" {
		title += " (" + doc.Profile + ")"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "> Exported %s\n", doc.ExportedAt.Format("2006-01-02 15:04"))

	for _, n := range doc.Groups {
		writeNode(&b, doc, n, 2)
	}
	if len(doc.Unfiled) > 0 {
		b.WriteString("\n## Unfiled\n")
		for _, n := range doc.Unfiled {
			writeNode(&b, doc, n, 3)
		}
	}

	return b.String()
}

func writeNode(b *strings.Builder, doc Document, n Node, depth int) {
	level := min(depth, 6)
	count := n.TabCount()
	noun := "tabs"
	if count == 1 {
		noun = "tab"
	}
	fmt.Fprintf(b, "\n%s %s (%d %s)\n", strings.Repeat("#", level), n.Name, count, noun)

	if len(n.Tabs) > 0 {
		b.WriteString("\n")
	}
	for _, tab := range n.Tabs {
		title := tab.Title
		if title == "" {
			title = tab.URL
		}
		var flags []string
		if tab.Pinned {
			flags = append(flags, "pinned")
		}
		if tab.Hidden {
			flags = append(flags, "hidden")
		}
		if tab.Tag != "" {
			flags = append(flags, "#"+tab.Tag)
		}
		flags = append(flags, humanize.RelTime(tab.LastAccessed, doc.ExportedAt, "ago", "from now"))
		fmt.Fprintf(b, "- [%s](%s) · %s\n", title, tab.URL, strings.Join(flags, " · "))
	}
	for _, ch := range n.Children {
		writeNode(b, doc, ch, depth+1)
	}
}
