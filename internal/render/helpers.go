// Package render produces themed Graphviz DOT for recovered schemas.
package render

import (
	"fmt"
	"strings"
)

// dotEscape escapes type names and titles for DOT HTML labels, where
// generic names like Vector<Offset<T>> would otherwise break the markup.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID maps a fully qualified type name to a DOT node ID. Dots and
// generic brackets become _XXXX escapes so Game.Monster and Game_Monster
// stay distinct.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// truncLabel clips a node title to maxLen bytes, ending in
// "..." when clipped. Stub nodes and table titles share it.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
