// Package analyzers holds the independent heuristic scanners that run over
// a fetched file catalog: security patterns, technical debt markers,
// complexity hotspots, and API endpoints. Each scanner is side-effect-free,
// consumes the catalog by value, and fails only on context cancellation, so
// the pipeline can run them concurrently and capture failures per scanner.
package analyzers

import (
	"context"
	"sort"
	"strings"

	t "repolens/internal/types"
)

// ctxCheckStride bounds how many files a scanner processes between
// cancellation checks.
const ctxCheckStride = 32

// maxScanLineLen skips pathological lines (minified bundles, embedded
// blobs) that would dominate regex time without yielding useful findings.
const maxScanLineLen = 2000

func checkCtx(ctx context.Context, i int) error {
	if i%ctxCheckStride == 0 {
		return ctx.Err()
	}
	return nil
}

// scanLines runs fn over each line of content, skipping oversized lines.
// Line numbers are 1-based.
func scanLines(content string, fn func(lineNo int, line string)) {
	for i, line := range strings.Split(content, "\n") {
		if len(line) > maxScanLineLen {
			continue
		}
		fn(i+1, line)
	}
}

func sortSecurity(findings []t.SecurityFinding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
}

func sortDebt(findings []t.DebtFinding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
}

func sortEndpoints(endpoints []t.Endpoint) {
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].File != endpoints[j].File {
			return endpoints[i].File < endpoints[j].File
		}
		if endpoints[i].Line != endpoints[j].Line {
			return endpoints[i].Line < endpoints[j].Line
		}
		return endpoints[i].Method < endpoints[j].Method
	})
}
