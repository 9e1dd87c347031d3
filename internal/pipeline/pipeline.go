// Package pipeline sequences one analysis run: fetch, import graph,
// architecture classification, concurrent heuristics, summary, report
// assembly. Heuristic failures are captured as report warnings; only
// identifier validation, fetching, and serialization fail a run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"repolens/internal/analyzers"
	"repolens/internal/arch"
	"repolens/internal/cache"
	"repolens/internal/catalog"
	"repolens/internal/config"
	"repolens/internal/event"
	"repolens/internal/fetch"
	"repolens/internal/graph"
	"repolens/internal/llm"
	"repolens/internal/progress"
	t "repolens/internal/types"
)

// HistorySink records run lifecycle rows. Implementations are best-effort;
// errors are logged and never affect the run.
type HistorySink interface {
	StartRun(ctx context.Context, runID, repo, ref string) error
	FinishRun(ctx context.Context, runID, status string, warnings int, took time.Duration) error
}

// ArtifactSink exports the serialized report after a successful run.
type ArtifactSink interface {
	PutReport(ctx context.Context, id string, body []byte) error
}

// Request identifies one analysis run.
type Request struct {
	RepoID string
	// Ref overrides the repository's default branch when set.
	Ref string
	// Refresh bypasses the cached result and recomputes.
	Refresh bool
}

// classification is the joined graph/architecture stage output.
type classification struct {
	graph      t.Graph
	components []t.Component
	layers     []t.Layer
	patterns   []string
	fallback   bool
}

// Coordinator drives the analysis state machine. Every collaborator is
// passed in at construction; the zero value is not usable.
type Coordinator struct {
	provider  fetch.Provider
	cache     *cache.ResultCache
	llm       llm.Client
	history   HistorySink
	artifacts ArtifactSink
	cfg       config.PipelineConfig

	classifyFn   func(context.Context, []t.FileRecord) (classification, error)
	securityFn   func(context.Context, []t.FileRecord) ([]t.SecurityFinding, error)
	debtFn       func(context.Context, []t.FileRecord) ([]t.DebtFinding, error)
	complexityFn func(context.Context, []t.FileRecord) ([]t.ComplexityFinding, error)
	endpointsFn  func(context.Context, []t.FileRecord) ([]t.Endpoint, error)
}

type Options struct {
	Provider  fetch.Provider
	Cache     *cache.ResultCache
	LLM       llm.Client
	History   HistorySink
	Artifacts ArtifactSink
	Config    config.PipelineConfig
}

func New(opts Options) (*Coordinator, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("pipeline: provider is required")
	}
	cfg := opts.Config
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 30 * time.Second
	}
	if cfg.LargeRepoFileLimit <= 0 {
		cfg.LargeRepoFileLimit = 1000
	}
	if cfg.FallbackFileLimit <= 0 {
		cfg.FallbackFileLimit = 200
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	return &Coordinator{
		provider:     opts.Provider,
		cache:        opts.Cache,
		llm:          opts.LLM,
		history:      opts.History,
		artifacts:    opts.Artifacts,
		cfg:          cfg,
		classifyFn:   defaultClassify,
		securityFn:   analyzers.Security,
		debtFn:       analyzers.TechDebt,
		complexityFn: analyzers.Complexity,
		endpointsFn:  analyzers.Endpoints,
	}, nil
}

// Analyze runs the full pipeline for one repository and emits the event
// protocol to the emitter carried in ctx: progress events throughout, then
// exactly one result+done on success or one error event on failure.
func (c *Coordinator) Analyze(ctx context.Context, req Request) (*t.Report, error) {
	em := event.EmitterFrom(ctx)
	tr, err := progress.NewTracker(em, progress.DefaultStages())
	if err != nil {
		return nil, err
	}
	stop := event.Heartbeat(ctx, em, c.cfg.HeartbeatInterval)
	defer stop()

	repoID, err := fetch.NormalizeRepoID(req.RepoID)
	if err != nil {
		return nil, c.fail(tr, em, err)
	}

	cacheID := repoID
	if ref := strings.TrimSpace(req.Ref); ref != "" {
		cacheID += "@" + ref
	}
	key := cache.AnalysisKey(cacheID)
	if !req.Refresh {
		if report, ok := c.cachedReport(ctx, key); ok {
			tr.Complete("Loaded cached analysis")
			em.Result(report)
			em.Done("analysis complete")
			return report, nil
		}
	}

	runID := uuid.NewString()
	started := time.Now()
	c.startHistory(ctx, runID, repoID, req.Ref)

	tr.Report(progress.StageFetch, "Fetching repository metadata", 10)
	meta, err := c.provider.Meta(ctx, repoID)
	if err != nil {
		c.finishHistory(ctx, runID, "failed", 0, time.Since(started))
		return nil, c.fail(tr, em, err)
	}
	ref := strings.TrimSpace(req.Ref)
	if ref == "" {
		ref = meta.DefaultBranch
	}
	tr.Report(progress.StageFetch, "Listing repository files", 40)
	files, err := c.provider.Catalog(ctx, repoID, ref)
	if err != nil {
		c.finishHistory(ctx, runID, "failed", 0, time.Since(started))
		return nil, c.fail(tr, em, err)
	}
	tr.Report(progress.StageFetch, fmt.Sprintf("Fetched %d files", len(files)), 100)

	cl := c.classify(ctx, tr, files)
	if err := ctx.Err(); err != nil {
		c.finishHistory(ctx, runID, "canceled", 0, time.Since(started))
		return nil, c.fail(tr, em, err)
	}

	fs, warnings := c.runHeuristics(ctx, tr, files)

	tr.Report(progress.StageSummary, "Summarizing architecture", 20)
	languages := catalog.LanguageTotals(files)
	summary := arch.Summary(meta, languages, cl.components, cl.layers, cl.patterns)
	diagram := arch.Mermaid(cl.layers, cl.components, cl.graph.Edges)
	insights, insightWarnings := c.generateInsights(ctx, meta, cl, fs, summary)
	warnings = append(warnings, insightWarnings...)
	tr.Report(progress.StageSummary, "Summary ready", 100)

	tr.Report(progress.StageFinalize, "Assembling report", 30)
	report := assembleReport(runID, repoID, ref, meta, languages, cl, fs, summary, diagram, insights, warnings)
	raw, err := marshalReport(report)
	if err != nil {
		c.finishHistory(ctx, runID, "failed", len(warnings), time.Since(started))
		return nil, c.fail(tr, em, err)
	}

	c.cache.Set(ctx, key, raw, 0)
	c.cache.Set(ctx, cache.ReportKey(report.ID), raw, 0)
	c.putArtifact(ctx, report.ID, raw)
	c.finishHistory(ctx, runID, "completed", len(warnings), time.Since(started))

	tr.Complete("Analysis complete")
	em.Result(report)
	em.Done("analysis complete")
	return report, nil
}

// Report returns a previously completed report by its ID.
func (c *Coordinator) Report(ctx context.Context, id string) (*t.Report, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	return c.cachedReport(ctx, cache.ReportKey(id))
}

// classify builds the graph and architecture view. Oversized catalogs skip
// the full computation up front; otherwise the full build races its
// deadline and loses to the cheap fallback.
func (c *Coordinator) classify(ctx context.Context, tr *progress.Tracker, files []t.FileRecord) classification {
	if len(files) > c.cfg.LargeRepoFileLimit {
		tr.Report(progress.StageGraph, "Large repository, building reduced graph", 20)
		cl := c.classifyFallback(files)
		tr.Report(progress.StageGraph, "Reduced graph ready", 100)
		tr.Report(progress.StageClassify, fmt.Sprintf("Classified %d representative files", len(cl.graph.Nodes)), 100)
		return cl
	}

	tr.Report(progress.StageGraph, "Building import graph", 10)
	cl, ok := raceStage(ctx, c.cfg.StageTimeout, func(rctx context.Context) (classification, error) {
		return c.classifyFn(rctx, files)
	})
	if !ok {
		tr.Report(progress.StageGraph, "Graph build exceeded its budget, using reduced graph", 60)
		cl = c.classifyFallback(files)
	}
	tr.Report(progress.StageGraph, "Import graph ready", 100)
	tr.Report(progress.StageClassify, fmt.Sprintf("Identified %d components across %d layers", len(cl.components), len(cl.layers)), 100)
	return cl
}

func defaultClassify(ctx context.Context, files []t.FileRecord) (classification, error) {
	g := graph.Build(ctx, files)
	if err := ctx.Err(); err != nil {
		return classification{}, err
	}
	comps := arch.BuildComponents(files, g.Edges)
	return classification{
		graph:      g,
		components: comps,
		layers:     arch.BuildLayers(comps),
		patterns:   arch.DetectPatterns(comps),
	}, nil
}

func (c *Coordinator) classifyFallback(files []t.FileRecord) classification {
	g := graph.BuildFallback(files, c.cfg.FallbackFileLimit)
	subset := filesForNodes(files, g.Nodes)
	comps := arch.BuildComponents(subset, g.Edges)
	return classification{
		graph:      g,
		components: comps,
		layers:     arch.BuildLayers(comps),
		patterns:   arch.DetectPatterns(comps),
		fallback:   true,
	}
}

func filesForNodes(files []t.FileRecord, nodes []t.GraphNode) []t.FileRecord {
	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[n.ID] = true
	}
	subset := make([]t.FileRecord, 0, len(nodes))
	for _, f := range files {
		if keep[f.Path] {
			subset = append(subset, f)
		}
	}
	return subset
}

// runHeuristics fans the four analyzers out concurrently and joins them,
// converting each failure into a warning. A failed analyzer contributes an
// empty finding list, never an aborted run.
func (c *Coordinator) runHeuristics(ctx context.Context, tr *progress.Tracker, files []t.FileRecord) (findingSet, []t.Warning) {
	tr.Report(progress.StageSecurity, "Scanning security patterns", 10)
	tr.Report(progress.StageTechDebt, "Scanning for technical debt", 10)
	tr.Report(progress.StageComplexity, "Estimating complexity", 10)
	tr.Report(progress.StageEndpoints, "Extracting API endpoints", 10)

	securityCh := settle(ctx, func(ctx context.Context) ([]t.SecurityFinding, error) {
		return c.securityFn(ctx, files)
	})
	debtCh := settle(ctx, func(ctx context.Context) ([]t.DebtFinding, error) {
		return c.debtFn(ctx, files)
	})
	complexityCh := settle(ctx, func(ctx context.Context) ([]t.ComplexityFinding, error) {
		return c.complexityFn(ctx, files)
	})
	endpointsCh := settle(ctx, func(ctx context.Context) ([]t.Endpoint, error) {
		return c.endpointsFn(ctx, files)
	})

	var fs findingSet
	var warnings []t.Warning

	if out := <-securityCh; out.err != nil {
		warnings = append(warnings, heuristicWarning(progress.StageSecurity, out.err))
	} else {
		fs.security = out.val
	}
	tr.Report(progress.StageSecurity, "Security scan finished", 100)

	if out := <-debtCh; out.err != nil {
		warnings = append(warnings, heuristicWarning(progress.StageTechDebt, out.err))
	} else {
		fs.debt = out.val
	}
	tr.Report(progress.StageTechDebt, "Debt scan finished", 100)

	if out := <-complexityCh; out.err != nil {
		warnings = append(warnings, heuristicWarning(progress.StageComplexity, out.err))
	} else {
		fs.complexity = out.val
	}
	tr.Report(progress.StageComplexity, "Complexity scan finished", 100)

	if out := <-endpointsCh; out.err != nil {
		warnings = append(warnings, heuristicWarning(progress.StageEndpoints, out.err))
	} else {
		fs.endpoints = out.val
	}
	tr.Report(progress.StageEndpoints, "Endpoint scan finished", 100)

	return fs, warnings
}

func heuristicWarning(step string, err error) t.Warning {
	return t.Warning{
		Step:    step,
		Message: fmt.Sprintf("%s analyzer failed", step),
		Cause:   err.Error(),
	}
}

func (c *Coordinator) generateInsights(ctx context.Context, meta t.RepoMeta, cl classification, fs findingSet, summary string) ([]t.Insight, []t.Warning) {
	if !llm.Configured(c.llm) {
		return nil, nil
	}
	text, err := c.llm.GenerateText(ctx, insightPrompt(meta, cl, fs, summary))
	if err != nil {
		logrus.Warnf("pipeline: insight generation failed: %v", err)
		return nil, []t.Warning{{Step: "insights", Message: "model generation failed", Cause: err.Error()}}
	}
	return llm.ParseInsights(text)
}

func insightPrompt(meta t.RepoMeta, cl classification, fs findingSet, summary string) string {
	var b strings.Builder
	b.WriteString("You are reviewing an automated analysis of a software repository. ")
	b.WriteString("Reply with only a JSON array of at most 5 objects shaped ")
	b.WriteString(`{"category":"...","title":"...","description":"..."}. `)
	b.WriteString("Valid categories: architecture, security, performance, maintainability, testing, documentation, dependencies.\n\n")
	fmt.Fprintf(&b, "Repository: %s\n", meta.FullName)
	fmt.Fprintf(&b, "Summary: %s\n", summary)
	if len(cl.patterns) > 0 {
		fmt.Fprintf(&b, "Detected patterns: %s\n", strings.Join(cl.patterns, ", "))
	}
	fmt.Fprintf(&b, "Components: %d, import edges: %d\n", len(cl.components), len(cl.graph.Edges))
	fmt.Fprintf(&b, "Security findings: %d, debt findings: %d, complexity hotspots: %d, endpoints: %d\n",
		len(fs.security), len(fs.debt), len(fs.complexity), len(fs.endpoints))
	return b.String()
}

func (c *Coordinator) cachedReport(ctx context.Context, key string) (*t.Report, bool) {
	raw, ok := c.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var report t.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		logrus.Warnf("pipeline: cached report under %q is unreadable: %v", key, err)
		c.cache.Delete(ctx, key)
		return nil, false
	}
	return &report, true
}

// fail marks the progress stream failed and emits the terminal error.
func (c *Coordinator) fail(tr *progress.Tracker, em event.Emitter, err error) error {
	tr.Fail("")
	em.Error(err)
	return err
}

func (c *Coordinator) startHistory(ctx context.Context, runID, repo, ref string) {
	if c.history == nil {
		return
	}
	if err := c.history.StartRun(ctx, runID, repo, ref); err != nil {
		logrus.Warnf("pipeline: history start: %v", err)
	}
}

func (c *Coordinator) finishHistory(ctx context.Context, runID, status string, warnings int, took time.Duration) {
	if c.history == nil {
		return
	}
	if err := c.history.FinishRun(ctx, runID, status, warnings, took); err != nil {
		logrus.Warnf("pipeline: history finish: %v", err)
	}
}

func (c *Coordinator) putArtifact(ctx context.Context, id string, raw []byte) {
	if c.artifacts == nil {
		return
	}
	if err := c.artifacts.PutReport(ctx, id, raw); err != nil {
		logrus.Warnf("pipeline: artifact export: %v", err)
	}
}
