package arch

import (
	"fmt"
	"sort"
	"strings"

	t "repolens/internal/types"
)

// Mermaid renders the layered component view as mermaid flowchart markup.
// Output is deterministic for a given input and every identifier and label
// is sanitized so repository paths cannot break the grammar.
func Mermaid(layers []t.Layer, components []t.Component, edges []t.GraphEdge) string {
	byID := make(map[string]t.Component, len(components))
	for _, c := range components {
		byID[c.ID] = c
	}

	var b strings.Builder
	b.WriteString("graph TD\n")

	for _, layer := range layers {
		fmt.Fprintf(&b, "    subgraph %s[%q]\n", mermaidID(string(layer.Type)), mermaidLabel(layer.Name))
		ids := append([]string(nil), layer.Components...)
		sort.Strings(ids)
		for _, id := range ids {
			c, ok := byID[id]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "        %s[%q]\n", mermaidID(c.ID), mermaidLabel(c.Name))
		}
		b.WriteString("    end\n")
	}

	type link struct {
		src, dst  string
		synthetic bool
	}
	seen := make(map[string]struct{})
	var links []link
	for _, c := range components {
		for _, dep := range c.Dependencies {
			if _, ok := byID[dep]; !ok {
				continue
			}
			key := c.ID + ">" + dep
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			links = append(links, link{src: c.ID, dst: dep})
		}
	}
	for _, e := range edges {
		if !e.Synthetic {
			continue
		}
		srcID, dstID := ComponentID(groupKey(e.Source)), ComponentID(groupKey(e.Target))
		if srcID == dstID {
			continue
		}
		if _, ok := byID[srcID]; !ok {
			continue
		}
		if _, ok := byID[dstID]; !ok {
			continue
		}
		key := srcID + ">" + dstID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, link{src: srcID, dst: dstID, synthetic: true})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].src != links[j].src {
			return links[i].src < links[j].src
		}
		return links[i].dst < links[j].dst
	})
	for _, l := range links {
		arrow := "-->"
		if l.synthetic {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "    %s %s %s\n", mermaidID(l.src), arrow, mermaidID(l.dst))
	}

	return b.String()
}

// mermaidID keeps identifiers to [a-z0-9_] so they parse as bare node ids.
func mermaidID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	id := strings.Trim(b.String(), "_")
	if id == "" {
		return "n"
	}
	if id[0] >= '0' && id[0] <= '9' {
		return "n" + id
	}
	return id
}

// mermaidLabel strips the characters mermaid treats as structure from a
// display label. The label is rendered inside a quoted string, so quotes and
// brackets are the dangerous ones.
func mermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		`"`, "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "(",
		">", ")",
		"`", "'",
		"\n", " ",
	)
	out := strings.TrimSpace(replacer.Replace(s))
	if out == "" {
		return "unnamed"
	}
	return out
}
