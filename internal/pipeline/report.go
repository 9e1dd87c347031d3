package pipeline

import (
	"errors"
	"fmt"
	"time"

	t "repolens/internal/types"
	"repolens/internal/util/jsonutil"
)

// ErrSerialization marks a report that could not be encoded. It is a
// terminal failure distinct from analysis failure.
var ErrSerialization = errors.New("pipeline: report serialization failed")

// findingSet is the joined output of the heuristic fan-out.
type findingSet struct {
	security   []t.SecurityFinding
	debt       []t.DebtFinding
	complexity []t.ComplexityFinding
	endpoints  []t.Endpoint
}

func assembleReport(id, repo, ref string, meta t.RepoMeta, languages map[string]int,
	cl classification, fs findingSet, summary, diagram string,
	insights []t.Insight, warnings []t.Warning) *t.Report {
	r := &t.Report{
		ID:                 id,
		Repo:               repo,
		Ref:                ref,
		GeneratedAt:        time.Now().UTC(),
		Meta:               meta,
		Languages:          languages,
		Graph:              cl.graph,
		Components:         cl.components,
		Layers:             cl.layers,
		Patterns:           cl.patterns,
		Diagram:            diagram,
		Summary:            summary,
		SecurityIssues:     fs.security,
		TechDebt:           fs.debt,
		ComplexityHotspots: fs.complexity,
		Endpoints:          fs.endpoints,
		Insights:           insights,
		Warnings:           warnings,
	}
	normalizeReport(r)
	return r
}

// normalizeReport replaces nil slices with empty ones so every serialized
// report carries [] rather than null for its collection fields.
func normalizeReport(r *t.Report) {
	if r.Languages == nil {
		r.Languages = map[string]int{}
	}
	if r.Graph.Nodes == nil {
		r.Graph.Nodes = []t.GraphNode{}
	}
	if r.Graph.Edges == nil {
		r.Graph.Edges = []t.GraphEdge{}
	}
	if r.Components == nil {
		r.Components = []t.Component{}
	}
	if r.Layers == nil {
		r.Layers = []t.Layer{}
	}
	if r.Patterns == nil {
		r.Patterns = []string{}
	}
	if r.SecurityIssues == nil {
		r.SecurityIssues = []t.SecurityFinding{}
	}
	if r.TechDebt == nil {
		r.TechDebt = []t.DebtFinding{}
	}
	if r.ComplexityHotspots == nil {
		r.ComplexityHotspots = []t.ComplexityFinding{}
	}
	if r.Endpoints == nil {
		r.Endpoints = []t.Endpoint{}
	}
	if r.Insights == nil {
		r.Insights = []t.Insight{}
	}
	if r.Warnings == nil {
		r.Warnings = []t.Warning{}
	}
}

// marshalReport serializes the report without HTML escaping. The report
// type is acyclic by construction; any residual encoder failure still
// surfaces as ErrSerialization rather than a generic analysis error.
func marshalReport(r *t.Report) ([]byte, error) {
	raw, err := jsonutil.MarshalNoEscape(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return raw, nil
}
