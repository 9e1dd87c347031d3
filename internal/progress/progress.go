// Package progress maps many unevenly sized pipeline stages onto one
// monotonically non-decreasing 0-100 percentage.
package progress

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"repolens/internal/event"
)

// Stage is one named slice of the run with its share of total progress.
type Stage struct {
	Key    string
	Weight int
}

// DefaultStages is the stage set for a full analysis run. Weights sum to
// 100; NewTracker enforces that.
func DefaultStages() []Stage {
	return []Stage{
		{Key: StageFetch, Weight: 15},
		{Key: StageGraph, Weight: 20},
		{Key: StageClassify, Weight: 15},
		{Key: StageSecurity, Weight: 10},
		{Key: StageTechDebt, Weight: 10},
		{Key: StageComplexity, Weight: 10},
		{Key: StageEndpoints, Weight: 5},
		{Key: StageSummary, Weight: 10},
		{Key: StageFinalize, Weight: 5},
	}
}

const (
	StageFetch      = "fetch"
	StageGraph      = "graph"
	StageClassify   = "classify"
	StageSecurity   = "security"
	StageTechDebt   = "techdebt"
	StageComplexity = "complexity"
	StageEndpoints  = "endpoints"
	StageSummary    = "summary"
	StageFinalize   = "finalize"
)

// Tracker owns the stage set for the lifetime of one run. All methods are
// safe for concurrent use; heuristic stages report from separate
// goroutines.
type Tracker struct {
	mu       sync.Mutex
	em       event.Emitter
	weights  map[string]int
	local    map[string]int
	last     int
	terminal bool
}

// NewTracker builds a tracker over the given stages. The stage weights
// must sum to exactly 100 so a fully reported run lands on 100%.
func NewTracker(em event.Emitter, stages []Stage) (*Tracker, error) {
	weights := make(map[string]int, len(stages))
	sum := 0
	for _, s := range stages {
		if s.Weight < 0 {
			return nil, fmt.Errorf("progress: stage %q has negative weight %d", s.Key, s.Weight)
		}
		if _, dup := weights[s.Key]; dup {
			return nil, fmt.Errorf("progress: duplicate stage %q", s.Key)
		}
		weights[s.Key] = s.Weight
		sum += s.Weight
	}
	if sum != 100 {
		return nil, fmt.Errorf("progress: stage weights sum to %d, want 100", sum)
	}
	return &Tracker{
		em:      em,
		weights: weights,
		local:   make(map[string]int, len(stages)),
	}, nil
}

// Report records a stage's local progress and emits one progress event.
// The emitted percentage never decreases: when the recomputed global value
// is not strictly greater than the last emitted one, the last value is
// re-emitted under the new label.
func (tr *Tracker) Report(stageKey, label string, localPercent int) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.terminal {
		return
	}
	if _, ok := tr.weights[stageKey]; !ok {
		logrus.Debugf("progress: ignoring unknown stage %q", stageKey)
		return
	}
	tr.local[stageKey] = clamp(localPercent)

	global := tr.globalLocked()
	if global > tr.last {
		tr.last = global
	}
	tr.em.Progress(label, tr.last)
}

// Complete marks the run finished and emits the terminal 100%. Only the
// first call wins; later calls (and later Reports) are no-ops.
func (tr *Tracker) Complete(label string) {
	tr.finish(label)
}

// Fail emits the designated failure progress value. Like Complete it fires
// at most once per run.
func (tr *Tracker) Fail(label string) {
	if label == "" {
		label = "Analysis failed"
	}
	tr.finish(label)
}

func (tr *Tracker) finish(label string) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.terminal {
		return
	}
	tr.terminal = true
	tr.last = 100
	tr.em.Progress(label, 100)
}

// Percent is the last emitted global percentage.
func (tr *Tracker) Percent() int {
	if tr == nil {
		return 0
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.last
}

func (tr *Tracker) globalLocked() int {
	sum := 0.0
	for key, weight := range tr.weights {
		sum += float64(weight) * float64(tr.local[key]) / 100.0
	}
	global := int(sum + 0.5)
	if global > 100 {
		global = 100
	}
	return global
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
