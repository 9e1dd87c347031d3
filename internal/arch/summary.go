package arch

import (
	"fmt"
	"sort"
	"strings"

	t "repolens/internal/types"
)

// Summary builds the deterministic rule-based description used whenever the
// language-model collaborator is absent or fails. It reads only already
// computed results, so it cannot fail.
func Summary(meta t.RepoMeta, languages map[string]int, components []t.Component, layers []t.Layer, patterns []string) string {
	name := strings.TrimSpace(meta.FullName)
	if name == "" {
		name = "The repository"
	}

	total := 0
	type langCount struct {
		name  string
		count int
	}
	ranked := make([]langCount, 0, len(languages))
	for lang, n := range languages {
		total += n
		if lang != "other" {
			ranked = append(ranked, langCount{lang, n})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%s contains %d files organized into %d components across %d architectural layers.",
		name, total, len(components), len(layers))
	if len(ranked) > 0 {
		top := ranked
		if len(top) > 3 {
			top = top[:3]
		}
		names := make([]string, 0, len(top))
		for _, lc := range top {
			names = append(names, lc.name)
		}
		fmt.Fprintf(&b, " The dominant languages are %s.", strings.Join(names, ", "))
	}
	if len(patterns) > 0 {
		fmt.Fprintf(&b, " The structure suggests: %s.", strings.Join(patterns, ", "))
	}
	for _, layer := range layers {
		fmt.Fprintf(&b, " The %s holds %d component(s).", strings.ToLower(layer.Name), len(layer.Components))
	}
	return b.String()
}
