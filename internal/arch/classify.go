package arch

import (
	"path"
	"strings"

	t "repolens/internal/types"
)

// typeRules is the ordered classification table. The first rule whose path
// token or extension matches wins, so broad markers like "util" sit below
// the structural ones.
var typeRules = []struct {
	Type   t.ComponentType
	Tokens []string
	Exts   []string
}{
	{t.ComponentFrontend,
		[]string{"component", "frontend", "client", "pages", "views", "view", "ui", "www"},
		[]string{".tsx", ".jsx", ".vue", ".svelte", ".html", ".css", ".scss", ".less"}},
	{t.ComponentBackend,
		[]string{"controller", "route", "server", "handler"}, nil},
	{t.ComponentDatabase,
		[]string{"model", "schema", "migration", "database", "repository", "entity", "db", "sql"},
		[]string{".sql"}},
	{t.ComponentService,
		[]string{"service", "worker", "job"}, nil},
	{t.ComponentMiddleware,
		[]string{"middleware", "auth", "guard", "interceptor"}, nil},
	{t.ComponentTest,
		[]string{"test", "spec", "__tests__", "e2e", "fixture"}, nil},
	{t.ComponentConfig,
		[]string{"config", "settings", "deploy", "docker", "env"},
		[]string{".json", ".yaml", ".yml", ".toml", ".ini", ".env", ".lock"}},
	{t.ComponentUtil,
		[]string{"util", "helper", "shared", "common", "lib"}, nil},
	{t.ComponentAPI,
		[]string{"api", "endpoint", "graphql", "grpc", "rest"}, nil},
}

var layerByType = map[t.ComponentType]t.LayerType{
	t.ComponentFrontend:   t.LayerPresentation,
	t.ComponentBackend:    t.LayerBusiness,
	t.ComponentService:    t.LayerBusiness,
	t.ComponentAPI:        t.LayerBusiness,
	t.ComponentDatabase:   t.LayerData,
	t.ComponentMiddleware: t.LayerInfrastructure,
	t.ComponentConfig:     t.LayerInfrastructure,
	t.ComponentUtil:       t.LayerInfrastructure,
	t.ComponentTest:       t.LayerInfrastructure,
}

// TypeForPath classifies one file path. The component grouping pass uses the
// same rule table through typeFor with the extensions of every grouped file.
func TypeForPath(p string) t.ComponentType {
	return typeFor(p, []string{strings.ToLower(path.Ext(p))})
}

func typeFor(p string, exts []string) t.ComponentType {
	lowered := strings.ToLower(p)
	for _, rule := range typeRules {
		for _, tok := range rule.Tokens {
			if strings.Contains(lowered, tok) {
				return rule.Type
			}
		}
		for _, ruleExt := range rule.Exts {
			for _, ext := range exts {
				if ext != "" && ext == ruleExt {
					return rule.Type
				}
			}
		}
	}
	return t.ComponentService
}

// LayerForType maps a component type onto its architectural tier.
func LayerForType(ct t.ComponentType) t.LayerType {
	if layer, ok := layerByType[ct]; ok {
		return layer
	}
	return t.LayerInfrastructure
}
