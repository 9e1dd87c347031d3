package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"repolens/internal/cache"
	"repolens/internal/cache/memory"
	"repolens/internal/config"
	"repolens/internal/event"
	"repolens/internal/fetch"
	"repolens/internal/llm"
	types "repolens/internal/types"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recordingEmitter) Emit(ev event.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingEmitter) Progress(label string, percent int) {
	r.Emit(event.Event{Type: event.TypeProgress, Label: label, Percent: percent})
}

func (r *recordingEmitter) Result(report *types.Report) {
	r.Emit(event.Event{Type: event.TypeResult, Report: report})
}

func (r *recordingEmitter) Done(message string) {
	r.Emit(event.Event{Type: event.TypeDone, Message: message})
}

func (r *recordingEmitter) Error(err error) {
	r.Emit(event.Event{Type: event.TypeError, Error: err.Error()})
}

func (r *recordingEmitter) KeepAlive() {
	r.Emit(event.Event{Type: event.TypeKeepAlive})
}

func (r *recordingEmitter) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

type fakeProvider struct {
	mu        sync.Mutex
	meta      types.RepoMeta
	files     []types.FileRecord
	metaErr   error
	catErr    error
	metaCalls int
	catCalls  int
}

func (p *fakeProvider) Meta(ctx context.Context, repoID string) (types.RepoMeta, error) {
	p.mu.Lock()
	p.metaCalls++
	p.mu.Unlock()
	if p.metaErr != nil {
		return types.RepoMeta{}, p.metaErr
	}
	return p.meta, nil
}

func (p *fakeProvider) Catalog(ctx context.Context, repoID, ref string) ([]types.FileRecord, error) {
	p.mu.Lock()
	p.catCalls++
	p.mu.Unlock()
	if p.catErr != nil {
		return nil, p.catErr
	}
	return p.files, nil
}

func (p *fakeProvider) calls() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metaCalls, p.catCalls
}

func demoMeta() types.RepoMeta {
	return types.RepoMeta{
		Owner:         "octocat",
		Name:          "demo",
		FullName:      "octocat/demo",
		DefaultBranch: "main",
		Stars:         3,
	}
}

func demoFiles() []types.FileRecord {
	return []types.FileRecord{
		{
			Path: "src/server.js", Name: "server.js", Language: "JavaScript", Size: 120,
			Content: "const express = require('express');\nconst app = express();\napp.get('/api/users', listUsers);\n",
		},
		{
			Path: "src/db.js", Name: "db.js", Language: "JavaScript", Size: 90,
			Content: "// TODO: add connection pooling\nconst q = \"SELECT * FROM users WHERE id = '\" + id;\n",
		},
		{Path: "README.md", Name: "README.md", Size: 20},
	}
}

func newTestCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	if opts.Provider == nil {
		opts.Provider = &fakeProvider{meta: demoMeta(), files: demoFiles()}
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func runAnalyze(t *testing.T, c *Coordinator, req Request) (*types.Report, []event.Event, error) {
	t.Helper()
	rec := &recordingEmitter{}
	ctx := event.WithEmitter(context.Background(), rec)
	report, err := c.Analyze(ctx, req)
	return report, rec.snapshot(), err
}

func countType(events []event.Event, ty event.Type) int {
	n := 0
	for _, ev := range events {
		if ev.Type == ty {
			n++
		}
	}
	return n
}

func TestAnalyzeHappyPath(t *testing.T) {
	c := newTestCoordinator(t, Options{})

	report, events, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report == nil {
		t.Fatal("report is nil")
	}
	if report.Repo != "octocat/demo" || report.Ref != "main" {
		t.Fatalf("repo/ref = %q/%q", report.Repo, report.Ref)
	}
	if report.ID == "" {
		t.Fatal("report has no ID")
	}
	if len(report.SecurityIssues) == 0 {
		t.Fatal("expected the SQL concatenation finding")
	}
	if len(report.TechDebt) == 0 {
		t.Fatal("expected the TODO finding")
	}
	foundEndpoint := false
	for _, ep := range report.Endpoints {
		if ep.Method == "GET" && ep.Route == "/api/users" {
			foundEndpoint = true
		}
	}
	if !foundEndpoint {
		t.Fatalf("GET /api/users missing from endpoints: %+v", report.Endpoints)
	}
	if report.Summary == "" {
		t.Fatal("summary is empty")
	}
	if !strings.HasPrefix(report.Diagram, "graph TD") {
		t.Fatalf("diagram = %q", report.Diagram)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}

	if n := countType(events, event.TypeResult); n != 1 {
		t.Fatalf("result events = %d, want 1", n)
	}
	if n := countType(events, event.TypeDone); n != 1 {
		t.Fatalf("done events = %d, want 1", n)
	}
	if n := countType(events, event.TypeError); n != 0 {
		t.Fatalf("error events = %d, want 0", n)
	}

	last := -1
	finalPercent := 0
	for _, ev := range events {
		if ev.Type != event.TypeProgress {
			continue
		}
		if ev.Percent < last {
			t.Fatalf("progress went backwards: %d after %d (%q)", ev.Percent, last, ev.Label)
		}
		last = ev.Percent
		finalPercent = ev.Percent
	}
	if finalPercent != 100 {
		t.Fatalf("final progress = %d, want 100", finalPercent)
	}
	if events[len(events)-1].Type != event.TypeDone {
		t.Fatalf("stream should end with done, got %v", events[len(events)-1].Type)
	}
}

func TestAnalyzeRejectsMalformedRepoID(t *testing.T) {
	provider := &fakeProvider{meta: demoMeta(), files: demoFiles()}
	c := newTestCoordinator(t, Options{Provider: provider})

	_, events, err := runAnalyze(t, c, Request{RepoID: "///"})
	if !errors.Is(err, fetch.ErrBadIdentifier) {
		t.Fatalf("err = %v, want ErrBadIdentifier", err)
	}
	if n := countType(events, event.TypeError); n != 1 {
		t.Fatalf("error events = %d, want 1", n)
	}
	if countType(events, event.TypeResult) != 0 || countType(events, event.TypeDone) != 0 {
		t.Fatalf("failed run must not emit result or done: %+v", events)
	}
	if metaCalls, _ := provider.calls(); metaCalls != 0 {
		t.Fatalf("provider called %d times for an invalid identifier", metaCalls)
	}
}

func TestAnalyzeProviderFailureIsTerminal(t *testing.T) {
	provider := &fakeProvider{metaErr: errors.New("upstream 500")}
	c := newTestCoordinator(t, Options{Provider: provider})

	_, events, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if n := countType(events, event.TypeError); n != 1 {
		t.Fatalf("error events = %d, want 1", n)
	}
	if countType(events, event.TypeResult) != 0 {
		t.Fatal("failed run must not emit a result")
	}
}

func TestAnalyzeCacheHit(t *testing.T) {
	provider := &fakeProvider{meta: demoMeta(), files: demoFiles()}
	rc := cache.New(memory.New(), 10, time.Hour)
	c := newTestCoordinator(t, Options{Provider: provider, Cache: rc})

	first, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}

	second, events, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("cached run returned a new report: %q != %q", second.ID, first.ID)
	}
	if metaCalls, catCalls := provider.calls(); metaCalls != 1 || catCalls != 1 {
		t.Fatalf("provider called again on cache hit: meta=%d catalog=%d", metaCalls, catCalls)
	}
	if countType(events, event.TypeResult) != 1 || countType(events, event.TypeDone) != 1 {
		t.Fatal("cache hit must still terminate the stream")
	}
}

func TestAnalyzeRefreshBypassesCache(t *testing.T) {
	provider := &fakeProvider{meta: demoMeta(), files: demoFiles()}
	rc := cache.New(memory.New(), 10, time.Hour)
	c := newTestCoordinator(t, Options{Provider: provider, Cache: rc})

	first, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo", Refresh: true})
	if err != nil {
		t.Fatalf("refresh Analyze: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("refresh should recompute, not replay the cached report")
	}
	if metaCalls, _ := provider.calls(); metaCalls != 2 {
		t.Fatalf("meta calls = %d, want 2", metaCalls)
	}
}

func TestAnalyzeRefDistinguishesCacheEntries(t *testing.T) {
	provider := &fakeProvider{meta: demoMeta(), files: demoFiles()}
	rc := cache.New(memory.New(), 10, time.Hour)
	c := newTestCoordinator(t, Options{Provider: provider, Cache: rc})

	main, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze main: %v", err)
	}
	dev, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo", Ref: "dev"})
	if err != nil {
		t.Fatalf("Analyze dev: %v", err)
	}
	if dev.ID == main.ID {
		t.Fatal("a different ref must not hit the default-branch entry")
	}
}

func TestAnalyzeReportLookupByID(t *testing.T) {
	rc := cache.New(memory.New(), 10, time.Hour)
	c := newTestCoordinator(t, Options{Cache: rc})

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got, ok := c.Report(context.Background(), report.ID)
	if !ok {
		t.Fatal("report not retrievable by ID")
	}
	if got.Repo != report.Repo {
		t.Fatalf("repo = %q, want %q", got.Repo, report.Repo)
	}
	if _, ok := c.Report(context.Background(), "no-such-id"); ok {
		t.Fatal("unknown ID should miss")
	}
}

func TestAnalyzeAllHeuristicsFailStillReports(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	broken := errors.New("scanner broke")
	c.securityFn = func(context.Context, []types.FileRecord) ([]types.SecurityFinding, error) { return nil, broken }
	c.debtFn = func(context.Context, []types.FileRecord) ([]types.DebtFinding, error) { return nil, broken }
	c.complexityFn = func(context.Context, []types.FileRecord) ([]types.ComplexityFinding, error) { return nil, broken }
	c.endpointsFn = func(context.Context, []types.FileRecord) ([]types.Endpoint, error) { return nil, broken }

	report, events, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Warnings) != 4 {
		t.Fatalf("warnings = %d, want 4: %+v", len(report.Warnings), report.Warnings)
	}
	if countType(events, event.TypeResult) != 1 {
		t.Fatal("degraded run must still deliver a result")
	}

	raw, merr := json.Marshal(report)
	if merr != nil {
		t.Fatalf("marshal: %v", merr)
	}
	for _, field := range []string{`"security_issues":[]`, `"tech_debt":[]`, `"complexity_hotspots":[]`, `"endpoints":[]`} {
		if !strings.Contains(string(raw), field) {
			t.Fatalf("serialized report missing %s", field)
		}
	}
}

func TestAnalyzeSingleHeuristicFailureIsIsolated(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	c.securityFn = func(context.Context, []types.FileRecord) ([]types.SecurityFinding, error) {
		return nil, errors.New("regex engine gave up")
	}

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(report.Warnings))
	}
	if report.Warnings[0].Step != "security" {
		t.Fatalf("warning step = %q, want security", report.Warnings[0].Step)
	}
	if len(report.SecurityIssues) != 0 {
		t.Fatalf("failed analyzer contributed findings: %+v", report.SecurityIssues)
	}
	if len(report.TechDebt) == 0 || len(report.Endpoints) == 0 {
		t.Fatal("surviving analyzers should still contribute")
	}
}

func TestAnalyzePanickingHeuristicIsIsolated(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	c.debtFn = func(context.Context, []types.FileRecord) ([]types.DebtFinding, error) {
		panic("index out of range")
	}

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1: %+v", len(report.Warnings), report.Warnings)
	}
	w := report.Warnings[0]
	if w.Step != "techdebt" || !strings.Contains(w.Cause, "index out of range") {
		t.Fatalf("warning = %+v", w)
	}
}

func TestAnalyzeLargeCatalogTakesFallback(t *testing.T) {
	files := make([]types.FileRecord, 0, 8)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files = append(files, types.FileRecord{
			Path: "src/" + name + ".js", Name: name + ".js", Language: "JavaScript", Size: 10,
			Content: "module.exports = {};\n",
		})
	}
	provider := &fakeProvider{meta: demoMeta(), files: files}
	c := newTestCoordinator(t, Options{
		Provider: provider,
		Config:   config.PipelineConfig{LargeRepoFileLimit: 5, FallbackFileLimit: 3},
	})

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Graph.Nodes) > 3 {
		t.Fatalf("fallback graph has %d nodes, limit 3", len(report.Graph.Nodes))
	}
	for _, e := range report.Graph.Edges {
		if !e.Synthetic {
			t.Fatalf("fallback edge %s -> %s is not synthetic", e.Source, e.Target)
		}
	}
}

func TestAnalyzeClassifyTimeoutFallsBack(t *testing.T) {
	c := newTestCoordinator(t, Options{
		Config: config.PipelineConfig{StageTimeout: 30 * time.Millisecond},
	})
	c.classifyFn = func(ctx context.Context, files []types.FileRecord) (classification, error) {
		// Finishes only after the stage deadline; its output must be dropped.
		<-ctx.Done()
		return classification{patterns: []string{"sentinel"}}, nil
	}

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, p := range report.Patterns {
		if p == "sentinel" {
			t.Fatal("late classification output leaked into the report")
		}
	}
	for _, e := range report.Graph.Edges {
		if !e.Synthetic {
			t.Fatalf("expected only synthetic fallback edges, got %+v", e)
		}
	}
}

func TestAnalyzeInsightsFromModel(t *testing.T) {
	c := newTestCoordinator(t, Options{LLM: llm.NewFake()})

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Insights) != 1 {
		t.Fatalf("insights = %d, want 1: %+v", len(report.Insights), report.Insights)
	}
	if report.Insights[0].Category != "architecture" {
		t.Fatalf("category = %q", report.Insights[0].Category)
	}
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}
}

func TestAnalyzeModelFailureDegradesToWarning(t *testing.T) {
	c := newTestCoordinator(t, Options{LLM: &llm.Fake{Err: errors.New("quota exhausted")}})

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Insights) != 0 {
		t.Fatalf("insights = %+v, want none", report.Insights)
	}
	found := false
	for _, w := range report.Warnings {
		if w.Step == "insights" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing insights warning: %+v", report.Warnings)
	}
	if report.Summary == "" {
		t.Fatal("summary should survive a model failure")
	}
}

type recordingHistory struct {
	mu       sync.Mutex
	starts   []string
	finishes []string
	err      error
}

func (h *recordingHistory) StartRun(ctx context.Context, runID, repo, ref string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, runID)
	return h.err
}

func (h *recordingHistory) FinishRun(ctx context.Context, runID, status string, warnings int, took time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishes = append(h.finishes, status)
	return h.err
}

type recordingArtifacts struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (a *recordingArtifacts) PutReport(ctx context.Context, id string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, id)
	return a.err
}

func TestAnalyzeRecordsHistoryAndArtifacts(t *testing.T) {
	hist := &recordingHistory{}
	arts := &recordingArtifacts{}
	c := newTestCoordinator(t, Options{History: hist, Artifacts: arts})

	report, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(hist.starts) != 1 || len(hist.finishes) != 1 || hist.finishes[0] != "completed" {
		t.Fatalf("history = starts %v finishes %v", hist.starts, hist.finishes)
	}
	if len(arts.ids) != 1 || arts.ids[0] != report.ID {
		t.Fatalf("artifact ids = %v, want [%s]", arts.ids, report.ID)
	}
}

func TestAnalyzeSinkFailuresDoNotFailRun(t *testing.T) {
	hist := &recordingHistory{err: errors.New("db down")}
	arts := &recordingArtifacts{err: errors.New("bucket gone")}
	c := newTestCoordinator(t, Options{History: hist, Artifacts: arts})

	report, events, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report == nil {
		t.Fatal("report is nil")
	}
	if countType(events, event.TypeError) != 0 {
		t.Fatal("sink failures must not surface as run errors")
	}
}

func TestAnalyzeFailedProviderMarksHistory(t *testing.T) {
	hist := &recordingHistory{}
	provider := &fakeProvider{metaErr: errors.New("not found")}
	c := newTestCoordinator(t, Options{Provider: provider, History: hist})

	if _, _, err := runAnalyze(t, c, Request{RepoID: "octocat/demo"}); err == nil {
		t.Fatal("expected an error")
	}
	if len(hist.finishes) != 1 || hist.finishes[0] != "failed" {
		t.Fatalf("history finishes = %v, want [failed]", hist.finishes)
	}
}
