// Package graph builds a directed import graph from raw file contents.
// Extraction is lexical per language, resolution is best-effort against the
// catalog, and a degenerate result is patched with clearly flagged synthetic
// connectivity so downstream rendering never sees a bare node set.
package graph

import (
	"context"
	"path"
	"sort"

	"github.com/sirupsen/logrus"

	"repolens/internal/arch"
	"repolens/internal/catalog"
	t "repolens/internal/types"
)

// ctxCheckStride is how many files are scanned between cancellation checks.
const ctxCheckStride = 64

// Build produces the full import graph for a catalog. The result is
// deterministic for a fixed input: nodes sorted by ID, edges sorted by
// (source, target), ties in resolution broken by path shape rather than
// discovery order. A canceled context stops the scan early and returns what
// was built so far; callers racing Build against a deadline discard that
// partial result.
func Build(ctx context.Context, files []t.FileRecord) t.Graph {
	analyzable := make([]t.FileRecord, 0, len(files))
	for _, f := range files {
		if catalog.Analyzable(f) {
			analyzable = append(analyzable, f)
		}
	}
	sort.Slice(analyzable, func(i, j int) bool { return analyzable[i].Path < analyzable[j].Path })

	nodes := make([]t.GraphNode, 0, len(analyzable))
	paths := make([]string, 0, len(analyzable))
	typeByPath := make(map[string]t.ComponentType, len(analyzable))
	for _, f := range analyzable {
		ct := arch.TypeForPath(f.Path)
		nodes = append(nodes, t.GraphNode{
			ID:            f.Path,
			Name:          path.Base(f.Path),
			ComponentType: ct,
			Path:          f.Path,
			Layer:         arch.LayerForType(ct),
		})
		paths = append(paths, f.Path)
		typeByPath[f.Path] = ct
	}

	r := newResolver(paths)
	seen := make(map[string]struct{})
	var edges []t.GraphEdge
	for i, f := range analyzable {
		if i%ctxCheckStride == 0 && ctx.Err() != nil {
			break
		}
		if f.Content == "" {
			continue
		}
		for _, spec := range extractSpecifiers(f) {
			target, ok := r.resolve(f.Path, spec)
			if !ok {
				if !isExternal(spec) {
					logrus.Warnf("graph: unresolved import %q in %s", spec, f.Path)
				}
				continue
			}
			if target == f.Path {
				continue
			}
			key := f.Path + "\x00" + target
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, t.GraphEdge{
				Source: f.Path,
				Target: target,
				Type:   edgeTypeFor(typeByPath[target]),
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	if len(nodes) > 1 && len(edges) == 0 {
		edges = FallbackEdges(nodes)
	}
	return t.Graph{Nodes: nodes, Edges: edges}
}

// BuildFallback is the cheap substitute used when the full build would be
// too expensive: it classifies at most limit files and connects them with
// synthetic edges, skipping extraction entirely.
func BuildFallback(files []t.FileRecord, limit int) t.Graph {
	analyzable := make([]t.FileRecord, 0, limit)
	for _, f := range files {
		if !catalog.Analyzable(f) {
			continue
		}
		analyzable = append(analyzable, f)
	}
	sort.Slice(analyzable, func(i, j int) bool { return analyzable[i].Path < analyzable[j].Path })
	if limit > 0 && len(analyzable) > limit {
		analyzable = analyzable[:limit]
	}

	nodes := make([]t.GraphNode, 0, len(analyzable))
	for _, f := range analyzable {
		ct := arch.TypeForPath(f.Path)
		nodes = append(nodes, t.GraphNode{
			ID:            f.Path,
			Name:          path.Base(f.Path),
			ComponentType: ct,
			Path:          f.Path,
			Layer:         arch.LayerForType(ct),
		})
	}
	var edges []t.GraphEdge
	if len(nodes) > 1 {
		edges = FallbackEdges(nodes)
	}
	return t.Graph{Nodes: nodes, Edges: edges}
}

// FallbackEdges links the first node to every other node. The edges carry
// the Synthetic flag so consumers can tell manufactured connectivity from
// real references.
func FallbackEdges(nodes []t.GraphNode) []t.GraphEdge {
	if len(nodes) < 2 {
		return nil
	}
	hub := nodes[0].ID
	edges := make([]t.GraphEdge, 0, len(nodes)-1)
	for _, n := range nodes[1:] {
		edges = append(edges, t.GraphEdge{
			Source:    hub,
			Target:    n.ID,
			Type:      "synthetic",
			Synthetic: true,
		})
	}
	return edges
}

// edgeTypeFor labels an edge by what kind of node it lands on. Display
// metadata only; structure does not depend on it.
func edgeTypeFor(target t.ComponentType) string {
	switch target {
	case t.ComponentDatabase:
		return "data_access"
	case t.ComponentAPI, t.ComponentBackend:
		return "api_call"
	case t.ComponentUtil:
		return "utility"
	default:
		return "import"
	}
}
