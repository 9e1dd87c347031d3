package graph

import (
	"path"
	"sort"
	"strings"
)

// candidateExts is the extension ladder tried when a relative specifier has
// no extension of its own. Order decides which file wins when several exist.
var candidateExts = []string{
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".vue", ".svelte",
	".py", ".go", ".java", ".rb", ".php", ".rs", ".c", ".h", ".cpp", ".hpp",
}

type resolver struct {
	paths   []string
	pathSet map[string]struct{}
}

// newResolver indexes the node paths. The slice is sorted so candidate
// scans are deterministic.
func newResolver(paths []string) *resolver {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	set := make(map[string]struct{}, len(sorted))
	for _, p := range sorted {
		set[p] = struct{}{}
	}
	return &resolver{paths: sorted, pathSet: set}
}

// resolve maps one specifier to a node path. Relative specifiers resolve
// against the referencing file's directory through the extension ladder;
// everything else falls through to a fragment-containment search over the
// node set, preferring the candidate with the fewest path segments and then
// the shortest string.
func (r *resolver) resolve(from, spec string) (string, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", false
	}
	if spec == "." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return r.resolveRelative(from, spec)
	}

	spec = strings.TrimPrefix(spec, "~/")
	spec = strings.Trim(spec, "/")
	if spec == "" {
		return "", false
	}

	best := ""
	bestSegs, bestLen := int(^uint(0)>>1), int(^uint(0)>>1)
	specParts := strings.Split(spec, "/")
	for _, p := range r.paths {
		if !matchesSpec(p, specParts) {
			continue
		}
		segs := strings.Count(p, "/") + 1
		if segs < bestSegs || (segs == bestSegs && len(p) < bestLen) {
			best, bestSegs, bestLen = p, segs, len(p)
		}
	}
	return best, best != ""
}

func (r *resolver) resolveRelative(from, spec string) (string, bool) {
	base := path.Join(path.Dir(from), spec)
	if base == "" || base == "." {
		return "", false
	}
	if _, ok := r.pathSet[base]; ok {
		return base, true
	}
	for _, ext := range candidateExts {
		if _, ok := r.pathSet[base+ext]; ok {
			return base + ext, true
		}
	}
	for _, ext := range candidateExts {
		if _, ok := r.pathSet[base+"/index"+ext]; ok {
			return base + "/index" + ext, true
		}
	}
	return "", false
}

// matchesSpec reports whether the specifier appears in the node path (or
// the node path in the specifier) as a run of whole path segments. The node
// path's final segment also matches with its extension stripped, so
// "util/format" finds "src/util/format.ts".
func matchesSpec(nodePath string, specParts []string) bool {
	nodeParts := strings.Split(nodePath, "/")
	stemmed := append([]string(nil), nodeParts...)
	if n := len(stemmed); n > 0 {
		last := stemmed[n-1]
		stemmed[n-1] = strings.TrimSuffix(last, path.Ext(last))
	}
	if containsRun(nodeParts, specParts) || containsRun(stemmed, specParts) {
		return true
	}
	return containsRun(specParts, nodeParts) || containsRun(specParts, stemmed)
}

func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		match := true
		for i := range needle {
			if haystack[start+i] != needle[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// externalPackages lists package names whose unresolved imports are dropped
// without a warning: language runtimes and the frameworks that dominate the
// ecosystems this analyzer sees.
var externalPackages = map[string]struct{}{
	// node builtins and the npm mainstream
	"fs": {}, "path": {}, "os": {}, "http": {}, "https": {}, "net": {},
	"url": {}, "util": {}, "crypto": {}, "events": {}, "stream": {},
	"buffer": {}, "zlib": {}, "child_process": {}, "cluster": {},
	"assert": {}, "querystring": {}, "readline": {}, "worker_threads": {},
	"react": {}, "react-dom": {}, "vue": {}, "angular": {}, "svelte": {},
	"next": {}, "nuxt": {}, "express": {}, "koa": {}, "fastify": {},
	"axios": {}, "lodash": {}, "underscore": {}, "moment": {}, "dayjs": {},
	"uuid": {}, "redux": {}, "rxjs": {}, "jquery": {}, "typescript": {},
	"webpack": {}, "vite": {}, "rollup": {}, "babel": {}, "eslint": {},
	"prettier": {}, "jest": {}, "mocha": {}, "chai": {}, "vitest": {}, "zod": {},
	// python
	"numpy": {}, "pandas": {}, "scipy": {}, "sklearn": {}, "matplotlib": {},
	"django": {}, "flask": {}, "fastapi": {}, "requests": {}, "pytest": {},
	"sqlalchemy": {}, "celery": {}, "typing": {}, "dataclasses": {},
	"collections": {}, "itertools": {}, "functools": {}, "json": {},
	"re": {}, "sys": {}, "logging": {}, "datetime": {}, "pathlib": {},
	"subprocess": {}, "unittest": {}, "asyncio": {},
	// ruby / php
	"rails": {}, "sinatra": {}, "activerecord": {}, "rspec": {},
	"laravel": {}, "symfony": {},
	// rust / jvm
	"std": {}, "core": {}, "alloc": {}, "serde": {}, "tokio": {}, "rand": {},
	"java": {}, "javax": {}, "kotlin": {}, "scala": {}, "android": {},
	// go stdlib roots seen in single-segment imports
	"fmt": {}, "strings": {}, "strconv": {}, "errors": {}, "context": {},
	"time": {}, "io": {}, "bufio": {}, "bytes": {}, "sort": {}, "math": {},
	"regexp": {}, "encoding": {}, "testing": {}, "runtime": {}, "reflect": {},
	"sync": {}, "flag": {}, "log": {}, "slices": {}, "maps": {},
}

// isExternal classifies an unresolved specifier as a third-party reference
// that should be dropped silently.
func isExternal(spec string) bool {
	if strings.Contains(spec, "node_modules") {
		return true
	}
	if strings.HasPrefix(spec, "@") {
		return true
	}
	first := spec
	if i := strings.IndexByte(first, '/'); i >= 0 {
		first = first[:i]
	}
	if _, ok := externalPackages[strings.ToLower(first)]; ok {
		return true
	}
	// module-path imports rooted at a registry domain
	return strings.Contains(first, ".") && !strings.HasPrefix(spec, ".")
}
