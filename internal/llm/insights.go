package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	t "repolens/internal/types"
)

// insightCategories is the closed set of accepted insight kinds. Items
// tagged with anything else are reported as unparseable.
var insightCategories = map[string]bool{
	"architecture":    true,
	"security":        true,
	"performance":     true,
	"maintainability": true,
	"testing":         true,
	"documentation":   true,
	"dependencies":    true,
}

const (
	maxInsights           = 12
	maxInsightTitle       = 160
	maxInsightDescription = 1000
)

// ParseInsights extracts validated insight records from raw model output.
// Locating the JSON array is tolerant (markdown fences, surrounding prose);
// validating each item is strict. Items that fail validation become
// warnings, never records.
func ParseInsights(raw string) ([]t.Insight, []t.Warning) {
	arr, ok := locateArray(raw)
	if !ok {
		return nil, []t.Warning{{
			Step:    "insights",
			Message: "model output contains no JSON array",
		}}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, []t.Warning{{
			Step:    "insights",
			Message: "model output is not a valid JSON array",
			Cause:   err.Error(),
		}}
	}

	var insights []t.Insight
	var warnings []t.Warning
	for i, item := range items {
		if len(insights) == maxInsights {
			warnings = append(warnings, t.Warning{
				Step:    "insights",
				Message: fmt.Sprintf("model returned more than %d insights, surplus dropped", maxInsights),
			})
			break
		}
		ins, err := parseInsight(item)
		if err != nil {
			warnings = append(warnings, t.Warning{
				Step:    "insights",
				Message: fmt.Sprintf("unparseable insight at index %d", i),
				Cause:   err.Error(),
			})
			continue
		}
		insights = append(insights, ins)
	}
	return insights, warnings
}

func parseInsight(raw json.RawMessage) (t.Insight, error) {
	var in struct {
		Category    string `json:"category"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return t.Insight{}, err
	}

	category := strings.ToLower(strings.TrimSpace(in.Category))
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)

	switch {
	case !insightCategories[category]:
		return t.Insight{}, fmt.Errorf("unknown category %q", in.Category)
	case title == "":
		return t.Insight{}, fmt.Errorf("title is empty")
	case len(title) > maxInsightTitle:
		return t.Insight{}, fmt.Errorf("title exceeds %d characters", maxInsightTitle)
	case description == "":
		return t.Insight{}, fmt.Errorf("description is empty")
	case len(description) > maxInsightDescription:
		return t.Insight{}, fmt.Errorf("description exceeds %d characters", maxInsightDescription)
	}
	return t.Insight{Category: category, Title: title, Description: description}, nil
}

// locateArray finds the outermost JSON array in s, tolerating markdown
// fences and surrounding prose.
func locateArray(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "```") {
		s = stripFences(s)
	}
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func stripFences(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
