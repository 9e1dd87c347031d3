package arch

import (
	"strings"

	t "repolens/internal/types"
)

// DetectPatterns names the architectural shapes visible in the component
// population. Rules are additive; when none fires the result is the single
// default pattern so callers never see an empty list.
func DetectPatterns(components []t.Component) []string {
	counts := make(map[t.ComponentType]int)
	hasControllerPath, hasModelPath := false, false
	for _, c := range components {
		counts[c.Type]++
		lowered := strings.ToLower(c.Path)
		if strings.Contains(lowered, "controller") {
			hasControllerPath = true
		}
		if strings.Contains(lowered, "model") {
			hasModelPath = true
		}
	}

	var patterns []string
	if counts[t.ComponentService] >= 3 {
		patterns = append(patterns, "Microservices")
	}
	if hasControllerPath && hasModelPath && counts[t.ComponentFrontend] > 0 && counts[t.ComponentBackend] > 0 {
		patterns = append(patterns, "MVC")
	}
	if counts[t.ComponentFrontend] > 0 && counts[t.ComponentBackend] > 0 && counts[t.ComponentDatabase] > 0 {
		patterns = append(patterns, "Layered Architecture")
	}
	if counts[t.ComponentFrontend] >= 3 {
		patterns = append(patterns, "Component-Based UI")
	}
	if counts[t.ComponentMiddleware] > 0 && counts[t.ComponentBackend] > 0 {
		patterns = append(patterns, "Middleware Pipeline")
	}
	if len(patterns) == 0 {
		patterns = append(patterns, "Modular Architecture")
	}
	return patterns
}
