package analyzers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	types "repolens/internal/types"
)

func TestScoreContent(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 1},
		{"no branches", "const x = 1", 1},
		{"single if", "if x > 0 { y() }", 2},
		{"mixed tokens", "if a && b || c { for i := range xs { } }", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScoreContent(tc.content); got != tc.want {
				t.Fatalf("score = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestComplexityReportsHotspots(t *testing.T) {
	hot := strings.Repeat("if x > 0 { y++ }\n", 20)
	cold := strings.Repeat("if x > 0 { y++ }\n", 5)

	findings, err := Complexity(context.Background(), []types.FileRecord{
		{Path: "src/hot.go", Content: hot},
		{Path: "src/cold.go", Content: cold},
	})
	if err != nil {
		t.Fatalf("complexity: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings = %v, want only the hotspot", findings)
	}
	got := findings[0]
	if got.File != "src/hot.go" || got.Complexity != 21 || got.Lines != 21 {
		t.Fatalf("unexpected hotspot: %+v", got)
	}
	if got.Recommendation == "" {
		t.Fatalf("hotspot carries no recommendation")
	}
}

func TestComplexitySortsByScoreThenFile(t *testing.T) {
	files := []types.FileRecord{
		{Path: "b.go", Content: strings.Repeat("if x { }\n", 20)},
		{Path: "a.go", Content: strings.Repeat("if x { }\n", 20)},
		{Path: "c.go", Content: strings.Repeat("if x { }\n", 30)},
	}
	findings, err := Complexity(context.Background(), files)
	if err != nil {
		t.Fatalf("complexity: %v", err)
	}
	if len(findings) != 3 {
		t.Fatalf("findings = %v, want 3", findings)
	}
	if findings[0].File != "c.go" || findings[1].File != "a.go" || findings[2].File != "b.go" {
		t.Fatalf("unexpected order: %v", findings)
	}
}

func TestComplexityCapsHotspots(t *testing.T) {
	var files []types.FileRecord
	for i := 0; i < maxHotspots+5; i++ {
		files = append(files, types.FileRecord{
			Path:    fmt.Sprintf("src/f%02d.go", i),
			Content: strings.Repeat("if x { }\n", 20),
		})
	}
	findings, err := Complexity(context.Background(), files)
	if err != nil {
		t.Fatalf("complexity: %v", err)
	}
	if len(findings) != maxHotspots {
		t.Fatalf("findings = %d, want %d", len(findings), maxHotspots)
	}
}
