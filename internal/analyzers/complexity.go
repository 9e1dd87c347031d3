package analyzers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	t "repolens/internal/types"
)

const (
	maxHotspots     = 20
	hotspotMinScore = 15
)

// branchTokens approximate decision points across the supported languages.
// The count is a cyclomatic estimate, not a parse.
var branchTokens = []string{"if ", "if(", "for ", "for(", "while ", "while(", "case ", "catch ", "catch(", "&&", "||", "elif ", "else if"}

// ScoreContent estimates cyclomatic complexity as one plus the number of
// branch tokens in content. Component complexity averages use the same
// scorer so hotspot and component numbers agree.
func ScoreContent(content string) int {
	score := 1
	for _, tok := range branchTokens {
		score += strings.Count(content, tok)
	}
	return score
}

// Complexity ranks the most complex files in the catalog. Only files whose
// estimate reaches hotspotMinScore are reported, capped to the top
// maxHotspots by score.
func Complexity(ctx context.Context, files []t.FileRecord) ([]t.ComplexityFinding, error) {
	var findings []t.ComplexityFinding
	for i, f := range files {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		score := ScoreContent(f.Content)
		if score < hotspotMinScore {
			continue
		}
		lines := strings.Count(f.Content, "\n") + 1
		findings = append(findings, t.ComplexityFinding{
			File:           f.Path,
			Complexity:     score,
			Lines:          lines,
			Description:    fmt.Sprintf("Roughly %d decision points across %d lines", score-1, lines),
			Recommendation: "Break the branching logic into smaller functions.",
		})
	}
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Complexity != findings[j].Complexity {
			return findings[i].Complexity > findings[j].Complexity
		}
		return findings[i].File < findings[j].File
	})
	if len(findings) > maxHotspots {
		findings = findings[:maxHotspots]
	}
	return findings, nil
}
