package arch

import (
	"path"
	"sort"
	"strings"

	"repolens/internal/analyzers"
	t "repolens/internal/types"
)

// groupKey decides which component a file belongs to. Root files stand
// alone, single-directory files keep their stem so small repos still split
// into per-file components, and deeper trees collapse onto their first two
// or three segments. This bounds the component count regardless of depth.
func groupKey(filePath string) string {
	parts := strings.Split(filePath, "/")
	switch len(parts) {
	case 1:
		return filePath
	case 2:
		return parts[0] + "/" + strings.TrimSuffix(parts[1], path.Ext(parts[1]))
	case 3:
		return strings.Join(parts[:2], "/")
	default:
		return strings.Join(parts[:3], "/")
	}
}

// ComponentID turns a group key into a stable identifier usable in diagram
// markup and JSON.
func ComponentID(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	id := strings.Trim(b.String(), "-")
	if id == "" {
		id = "component"
	}
	return id
}

// BuildComponents groups the catalog into components and wires
// component-level dependencies from the file-level import edges.
func BuildComponents(files []t.FileRecord, edges []t.GraphEdge) []t.Component {
	type bucket struct {
		key   string
		files []t.FileRecord
	}
	byKey := make(map[string]*bucket)
	keyByPath := make(map[string]string, len(files))
	for _, f := range files {
		key := groupKey(f.Path)
		keyByPath[f.Path] = key
		bk, ok := byKey[key]
		if !ok {
			bk = &bucket{key: key}
			byKey[key] = bk
		}
		bk.files = append(bk.files, f)
	}

	depsByKey := make(map[string]map[string]struct{})
	for _, e := range edges {
		if e.Synthetic {
			continue
		}
		srcKey, ok1 := keyByPath[e.Source]
		dstKey, ok2 := keyByPath[e.Target]
		if !ok1 || !ok2 || srcKey == dstKey {
			continue
		}
		set, ok := depsByKey[srcKey]
		if !ok {
			set = make(map[string]struct{})
			depsByKey[srcKey] = set
		}
		set[ComponentID(dstKey)] = struct{}{}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	components := make([]t.Component, 0, len(keys))
	for _, key := range keys {
		bk := byKey[key]
		paths := make([]string, 0, len(bk.files))
		exts := make([]string, 0, len(bk.files))
		for _, f := range bk.files {
			paths = append(paths, f.Path)
			exts = append(exts, strings.ToLower(path.Ext(f.Path)))
		}
		sort.Strings(paths)

		deps := make([]string, 0, len(depsByKey[key]))
		for dep := range depsByKey[key] {
			deps = append(deps, dep)
		}
		sort.Strings(deps)

		components = append(components, t.Component{
			ID:           ComponentID(key),
			Name:         path.Base(key),
			Type:         typeFor(key, exts),
			Path:         key,
			Files:        paths,
			Dependencies: deps,
			Complexity:   meanComplexity(bk.files),
		})
	}
	return components
}

// meanComplexity averages the per-file scores of files that carry content.
// A component with nothing measurable scores 1.
func meanComplexity(files []t.FileRecord) float64 {
	sum, n := 0, 0
	for _, f := range files {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		sum += analyzers.ScoreContent(f.Content)
		n++
	}
	if n == 0 {
		return 1
	}
	return float64(sum) / float64(n)
}

var layerOrder = []t.LayerType{t.LayerPresentation, t.LayerBusiness, t.LayerData, t.LayerInfrastructure}

var layerNames = map[t.LayerType]string{
	t.LayerPresentation:   "Presentation Layer",
	t.LayerBusiness:       "Business Layer",
	t.LayerData:           "Data Layer",
	t.LayerInfrastructure: "Infrastructure Layer",
}

// BuildLayers partitions components into the four architectural tiers and
// drops tiers that end up empty.
func BuildLayers(components []t.Component) []t.Layer {
	byLayer := make(map[t.LayerType][]string)
	for _, c := range components {
		lt := LayerForType(c.Type)
		byLayer[lt] = append(byLayer[lt], c.ID)
	}

	layers := make([]t.Layer, 0, len(layerOrder))
	for _, lt := range layerOrder {
		ids := byLayer[lt]
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		layers = append(layers, t.Layer{Name: layerNames[lt], Type: lt, Components: ids})
	}
	return layers
}
