package analyzers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	t "repolens/internal/types"
)

const (
	maxDebtFindings = 100
	maxSnippetLen   = 120

	longFileLines     = 400
	veryLongFileLines = 800
	deepIndentWidth   = 24
)

var debtMarker = regexp.MustCompile(`\b(TODO|FIXME|HACK|XXX)\b`)

var markerSeverity = map[string]t.Severity{
	"TODO":  t.SeverityLow,
	"FIXME": t.SeverityMedium,
	"HACK":  t.SeverityMedium,
	"XXX":   t.SeverityMedium,
}

var deprecatedMarker = regexp.MustCompile(`(?i)@deprecated\b`)

// TechDebt scans the catalog for debt markers, oversized files, and deeply
// nested code.
func TechDebt(ctx context.Context, files []t.FileRecord) ([]t.DebtFinding, error) {
	var findings []t.DebtFinding
	add := func(f t.DebtFinding) {
		if len(findings) < maxDebtFindings {
			findings = append(findings, f)
		}
	}

	for i, f := range files {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		if len(findings) >= maxDebtFindings {
			break
		}
		if f.Content == "" {
			continue
		}

		lineCount := strings.Count(f.Content, "\n") + 1
		deepestIndent, deepestLine := 0, 0

		scanLines(f.Content, func(lineNo int, line string) {
			if m := debtMarker.FindStringSubmatch(line); m != nil {
				add(t.DebtFinding{
					Severity:       markerSeverity[m[1]],
					File:           f.Path,
					Line:           lineNo,
					Description:    fmt.Sprintf("%s marker: %s", m[1], snippet(line)),
					Recommendation: "Resolve the marker or track it as a real issue.",
				})
			} else if deprecatedMarker.MatchString(line) {
				add(t.DebtFinding{
					Severity:       t.SeverityLow,
					File:           f.Path,
					Line:           lineNo,
					Description:    "Deprecated API marker",
					Recommendation: "Migrate callers and remove the deprecated path.",
				})
			}
			if w := indentWidth(line); w > deepestIndent {
				deepestIndent, deepestLine = w, lineNo
			}
		})

		if lineCount > longFileLines {
			sev := t.SeverityLow
			if lineCount > veryLongFileLines {
				sev = t.SeverityMedium
			}
			add(t.DebtFinding{
				Severity:       sev,
				File:           f.Path,
				Description:    fmt.Sprintf("File spans %d lines", lineCount),
				Recommendation: "Split the file along its natural responsibilities.",
			})
		}
		if deepestIndent >= deepIndentWidth {
			add(t.DebtFinding{
				Severity:       t.SeverityLow,
				File:           f.Path,
				Line:           deepestLine,
				Description:    "Deeply nested control flow",
				Recommendation: "Flatten with early returns or extracted helpers.",
			})
		}
	}
	sortDebt(findings)
	return findings, nil
}

// snippet trims a matched line for inclusion in a finding description.
func snippet(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "/#*- \t")
	if len(s) > maxSnippetLen {
		s = s[:maxSnippetLen] + "..."
	}
	return s
}

// indentWidth measures leading whitespace with tabs counted as four columns.
func indentWidth(line string) int {
	if strings.TrimSpace(line) == "" {
		return 0
	}
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width
		}
	}
	return width
}
