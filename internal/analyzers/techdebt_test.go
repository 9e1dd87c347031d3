package analyzers

import (
	"context"
	"strings"
	"testing"

	types "repolens/internal/types"
)

func findDebt(findings []types.DebtFinding, substr string) (types.DebtFinding, bool) {
	for _, f := range findings {
		if strings.Contains(f.Description, substr) {
			return f, true
		}
	}
	return types.DebtFinding{}, false
}

func TestTechDebtMarkers(t *testing.T) {
	content := strings.Join([]string{
		"function pay() {",
		"  // TODO: rework pagination",
		"  // FIXME drop the retry hack",
		"  /* HACK works around upstream bug */",
		"}",
	}, "\n")
	findings, err := TechDebt(context.Background(), []types.FileRecord{{Path: "src/pay.js", Content: content}})
	if err != nil {
		t.Fatalf("techdebt: %v", err)
	}
	if len(findings) != 3 {
		t.Fatalf("findings = %v, want 3", findings)
	}

	todo, ok := findDebt(findings, "TODO")
	if !ok || todo.Severity != types.SeverityLow || todo.Line != 2 {
		t.Fatalf("unexpected TODO finding: %+v", todo)
	}
	fixme, ok := findDebt(findings, "FIXME")
	if !ok || fixme.Severity != types.SeverityMedium || fixme.Line != 3 {
		t.Fatalf("unexpected FIXME finding: %+v", fixme)
	}
	if hack, ok := findDebt(findings, "HACK"); !ok || hack.Line != 4 {
		t.Fatalf("unexpected HACK finding: %+v", hack)
	}
}

func TestTechDebtMarkerSnippetTrimmed(t *testing.T) {
	line := "// TODO: " + strings.Repeat("x", 300)
	findings, err := TechDebt(context.Background(), []types.FileRecord{{Path: "a.js", Content: line}})
	if err != nil {
		t.Fatalf("techdebt: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %v, want 1", findings)
	}
	if !strings.HasSuffix(findings[0].Description, "...") {
		t.Fatalf("long marker line not trimmed: %q", findings[0].Description)
	}
}

func TestTechDebtLongFile(t *testing.T) {
	long := strings.Repeat("let x = 1\n", longFileLines+1)
	veryLong := strings.Repeat("let x = 1\n", veryLongFileLines+1)

	findings, err := TechDebt(context.Background(), []types.FileRecord{
		{Path: "long.js", Content: long},
		{Path: "verylong.js", Content: veryLong},
	})
	if err != nil {
		t.Fatalf("techdebt: %v", err)
	}

	var gotLong, gotVeryLong bool
	for _, f := range findings {
		switch f.File {
		case "long.js":
			gotLong = true
			if f.Severity != types.SeverityLow {
				t.Fatalf("long file severity = %q, want low", f.Severity)
			}
		case "verylong.js":
			gotVeryLong = true
			if f.Severity != types.SeverityMedium {
				t.Fatalf("very long file severity = %q, want medium", f.Severity)
			}
		}
	}
	if !gotLong || !gotVeryLong {
		t.Fatalf("expected findings for both files: %v", findings)
	}
}

func TestTechDebtDeepNesting(t *testing.T) {
	content := "function f() {\n" + strings.Repeat(" ", deepIndentWidth+4) + "return 1\n}"
	findings, err := TechDebt(context.Background(), []types.FileRecord{{Path: "deep.js", Content: content}})
	if err != nil {
		t.Fatalf("techdebt: %v", err)
	}
	nested, ok := findDebt(findings, "nested")
	if !ok || nested.Line != 2 {
		t.Fatalf("expected deep nesting finding at line 2: %v", findings)
	}
}

func TestTechDebtSkipsContentlessFiles(t *testing.T) {
	findings, err := TechDebt(context.Background(), []types.FileRecord{{Path: "logo.png"}})
	if err != nil {
		t.Fatalf("techdebt: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("findings = %v, want none", findings)
	}
}
