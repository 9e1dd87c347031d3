package graph

import (
	"regexp"
	"strings"

	t "repolens/internal/types"
)

// Per-language lexical rules. These are deliberately shallow: they pick
// import-like statements out of raw text and never attempt a real parse, so
// syntactically broken files still yield their well-formed statements.
var (
	reJSFrom    = regexp.MustCompile(`(?:import|export)\s+[\w${},*\s]*?from\s*['"]([^'"]+)['"]`)
	reJSBare    = regexp.MustCompile(`import\s*['"]([^'"]+)['"]`)
	reJSRequire = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	reJSDynamic = regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	rePyImport = regexp.MustCompile(`(?m)^\s*import\s+([\w.]+)`)
	rePyFrom   = regexp.MustCompile(`(?m)^\s*from\s+([\w.]+)\s+import\b`)

	reGoSingle = regexp.MustCompile(`(?m)^\s*import\s+(?:\w+\s+)?"([^"]+)"`)
	reGoBlock  = regexp.MustCompile(`(?s)import\s*\(([^)]*)\)`)
	reGoQuoted = regexp.MustCompile(`"([^"]+)"`)

	reJavaImport = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+?)(?:\.\*)?\s*;`)

	reRubyRequire  = regexp.MustCompile(`(?m)^\s*require\s+['"]([^'"]+)['"]`)
	reRubyRelative = regexp.MustCompile(`(?m)^\s*require_relative\s+['"]([^'"]+)['"]`)

	rePHPUse     = regexp.MustCompile(`(?m)^\s*use\s+([\w\\]+)\s*;`)
	rePHPInclude = regexp.MustCompile(`(?:include|require)(?:_once)?\s*\(?\s*['"]([^'"]+)['"]`)

	reRustUse = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?use\s+([\w:]+)`)
	reRustMod = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?mod\s+(\w+)\s*;`)

	reCInclude = regexp.MustCompile(`(?m)^\s*#include\s+"([^"]+)"`)

	rePermissive = regexp.MustCompile(`['"]([~@./\w-]+(?:/[\w.@-]+)*)['"]`)
)

// extractSpecifiers returns the raw module specifiers referenced by one
// file. It never panics: a scanner blowing up on pathological content drops
// through to the permissive pass instead.
func extractSpecifiers(file t.FileRecord) (specs []string) {
	defer func() {
		if r := recover(); r != nil {
			specs = permissiveScan(file.Content)
		}
	}()

	switch file.Language {
	case "javascript", "typescript", "vue", "svelte":
		specs = scanJS(file.Content)
	case "python":
		specs = scanPython(file.Content)
	case "go":
		specs = scanGo(file.Content)
	case "java":
		specs = scanJava(file.Content)
	case "ruby":
		specs = scanRuby(file.Content)
	case "php":
		specs = scanPHP(file.Content)
	case "rust":
		specs = scanRust(file.Content)
	case "c", "cpp":
		specs = scanC(file.Content)
	default:
		return nil
	}

	// Structured scan came up empty on a file that clearly references
	// modules: fall back to the permissive pass.
	if len(specs) == 0 && mentionsImports(file.Content) {
		specs = permissiveScan(file.Content)
	}
	return specs
}

func scanJS(content string) []string {
	var specs []string
	for _, re := range []*regexp.Regexp{reJSFrom, reJSBare, reJSDynamic, reJSRequire} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			specs = append(specs, m[1])
		}
	}
	return specs
}

func scanPython(content string) []string {
	var specs []string
	for _, re := range []*regexp.Regexp{rePyFrom, rePyImport} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			specs = append(specs, pythonToPath(m[1]))
		}
	}
	return specs
}

// pythonToPath rewrites dotted module names as path fragments, keeping
// leading dots as relative markers ("..mod" becomes "../mod").
func pythonToPath(mod string) string {
	rest := strings.TrimLeft(mod, ".")
	dots := len(mod) - len(rest)
	rest = strings.ReplaceAll(rest, ".", "/")
	switch {
	case dots == 0:
		return rest
	case dots == 1:
		return "./" + rest
	default:
		return strings.Repeat("../", dots-1) + rest
	}
}

func scanGo(content string) []string {
	var specs []string
	for _, m := range reGoBlock.FindAllStringSubmatch(content, -1) {
		for _, q := range reGoQuoted.FindAllStringSubmatch(m[1], -1) {
			specs = append(specs, q[1])
		}
	}
	for _, m := range reGoSingle.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}
	return specs
}

func scanJava(content string) []string {
	var specs []string
	for _, m := range reJavaImport.FindAllStringSubmatch(content, -1) {
		specs = append(specs, strings.ReplaceAll(m[1], ".", "/"))
	}
	return specs
}

func scanRuby(content string) []string {
	var specs []string
	for _, m := range reRubyRelative.FindAllStringSubmatch(content, -1) {
		spec := m[1]
		if !strings.HasPrefix(spec, ".") {
			spec = "./" + spec
		}
		specs = append(specs, spec)
	}
	for _, m := range reRubyRequire.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}
	return specs
}

func scanPHP(content string) []string {
	var specs []string
	for _, m := range rePHPUse.FindAllStringSubmatch(content, -1) {
		specs = append(specs, strings.ReplaceAll(m[1], `\`, "/"))
	}
	for _, m := range rePHPInclude.FindAllStringSubmatch(content, -1) {
		specs = append(specs, m[1])
	}
	return specs
}

func scanRust(content string) []string {
	var specs []string
	for _, m := range reRustUse.FindAllStringSubmatch(content, -1) {
		spec := strings.ReplaceAll(m[1], "::", "/")
		spec = strings.TrimPrefix(spec, "crate/")
		spec = strings.TrimPrefix(spec, "self/")
		spec = strings.TrimPrefix(spec, "super/")
		if spec != "" {
			specs = append(specs, spec)
		}
	}
	for _, m := range reRustMod.FindAllStringSubmatch(content, -1) {
		specs = append(specs, "./"+m[1])
	}
	return specs
}

func scanC(content string) []string {
	var specs []string
	for _, m := range reCInclude.FindAllStringSubmatch(content, -1) {
		spec := m[1]
		if !strings.HasPrefix(spec, ".") {
			spec = "./" + spec
		}
		specs = append(specs, spec)
	}
	return specs
}

var importMarkers = []string{"import ", "import(", "require", "include", "from ", "use ", "#include"}

func mentionsImports(content string) bool {
	for _, marker := range importMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}

// permissiveScan pulls every quoted path-looking string out of lines that
// mention an import keyword. Noisy but resilient; resolution discards the
// junk.
func permissiveScan(content string) []string {
	var specs []string
	for _, line := range strings.Split(content, "\n") {
		if !mentionsImports(line) {
			continue
		}
		for _, m := range rePermissive.FindAllStringSubmatch(line, -1) {
			specs = append(specs, m[1])
		}
	}
	return specs
}
