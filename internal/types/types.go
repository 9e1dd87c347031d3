package types

import "time"

// Catalog ------------------------------------------------------------------------

// FileRecord is one fetched repository file. Records are immutable once the
// catalog is built; downstream components read them by value.
type FileRecord struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Language string `json:"language,omitempty"`
	Content  string `json:"content,omitempty"`
}

// RepoMeta is the repository metadata returned by the data provider.
type RepoMeta struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Description   string `json:"description,omitempty"`
	Stars         int    `json:"stars"`
	Forks         int    `json:"forks"`
	Private       bool   `json:"private"`
}

// Graph --------------------------------------------------------------------------

type ComponentType string

const (
	ComponentFrontend   ComponentType = "frontend"
	ComponentBackend    ComponentType = "backend"
	ComponentDatabase   ComponentType = "database"
	ComponentService    ComponentType = "service"
	ComponentAPI        ComponentType = "api"
	ComponentMiddleware ComponentType = "middleware"
	ComponentConfig     ComponentType = "config"
	ComponentTest       ComponentType = "test"
	ComponentUtil       ComponentType = "util"
)

type LayerType string

const (
	LayerPresentation   LayerType = "presentation"
	LayerBusiness       LayerType = "business"
	LayerData           LayerType = "data"
	LayerInfrastructure LayerType = "infrastructure"
)

// GraphNode is one analyzable file (or synthesized component) in the import
// graph. ID equals the repo-relative path.
type GraphNode struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ComponentType ComponentType `json:"component_type"`
	Path          string        `json:"path"`
	Layer         LayerType     `json:"layer"`
}

// GraphEdge is a directed "source statically references target" edge.
// Synthetic marks fallback connectivity edges that do not come from real
// import statements.
type GraphEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Type      string `json:"type"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Architecture -------------------------------------------------------------------

// Component is a logical grouping of files inferred from path prefixes.
// Complexity is the mean of constituent file complexities (1 when none are
// measurable).
type Component struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         ComponentType `json:"type"`
	Path         string        `json:"path"`
	Files        []string      `json:"files"`
	Dependencies []string      `json:"dependencies"`
	Complexity   float64       `json:"complexity"`
}

// Layer is a coarse architectural tier holding component IDs. A component
// belongs to exactly one layer, chosen by its type; empty layers are dropped.
type Layer struct {
	Name       string    `json:"name"`
	Type       LayerType `json:"type"`
	Components []string  `json:"components"`
}

// Findings -----------------------------------------------------------------------

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type SecurityFinding struct {
	Severity       Severity `json:"severity"`
	File           string   `json:"file"`
	Line           int      `json:"line,omitempty"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type DebtFinding struct {
	Severity       Severity `json:"severity"`
	File           string   `json:"file"`
	Line           int      `json:"line,omitempty"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

type ComplexityFinding struct {
	File           string `json:"file"`
	Complexity     int    `json:"complexity"`
	Lines          int    `json:"lines"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

type Endpoint struct {
	Method string `json:"method"`
	Route  string `json:"route"`
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
}

// Insight is a validated record parsed from LLM output. Unvalidated model
// text never becomes an Insight; items that fail validation are reported as
// warnings instead.
type Insight struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Warning records a non-fatal failure of one analysis sub-step. Warnings are
// part of the successful report payload, never a run abort.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Report -------------------------------------------------------------------------

// Report is the terminal payload of one analysis run. Finding slices are
// always present (empty, not null) in the serialized form so consumers can
// index them without nil checks.
type Report struct {
	ID          string    `json:"id"`
	Repo        string    `json:"repo"`
	Ref         string    `json:"ref,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`

	Meta      RepoMeta       `json:"meta"`
	Languages map[string]int `json:"languages"`

	Graph      Graph       `json:"graph"`
	Components []Component `json:"components"`
	Layers     []Layer     `json:"layers"`
	Patterns   []string    `json:"patterns"`
	Diagram    string      `json:"diagram"`
	Summary    string      `json:"summary"`

	SecurityIssues     []SecurityFinding   `json:"security_issues"`
	TechDebt           []DebtFinding       `json:"tech_debt"`
	ComplexityHotspots []ComplexityFinding `json:"complexity_hotspots"`
	Endpoints          []Endpoint          `json:"endpoints"`
	Insights           []Insight           `json:"insights"`

	Warnings []Warning `json:"warnings"`
}
