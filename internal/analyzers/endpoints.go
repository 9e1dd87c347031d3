package analyzers

import (
	"context"
	"regexp"
	"strings"

	t "repolens/internal/types"
)

const maxEndpoints = 150

var (
	reLaravel    = regexp.MustCompile(`Route::(get|post|put|delete|patch|any)\s*\(\s*['"]([^'"]+)['"]`)
	reSpring     = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch)Mapping\s*\(\s*(?:value\s*=\s*)?['"]([^'"]+)['"]`)
	reSpringAny  = regexp.MustCompile(`@RequestMapping\s*\(\s*(?:value\s*=\s*)?['"]([^'"]+)['"]`)
	reNest       = regexp.MustCompile(`^\s*@(Get|Post|Put|Delete|Patch|Head|Options)\s*\(\s*(?:['"]([^'"]*)['"])?\s*\)`)
	reFlaskRoute = regexp.MustCompile(`@\w+\.route\s*\(\s*['"]([^'"]+)['"]`)
	reFlaskVerbs = regexp.MustCompile(`methods\s*=\s*\[([^\]]+)\]`)
	reDecorator  = regexp.MustCompile(`@\w+\.(get|post|put|delete|patch)\s*\(\s*['"](/[^'"]*)['"]`)
	reHandleFunc = regexp.MustCompile(`HandleFunc\s*\(\s*"([^"]+)"`)
	reGoRouter   = regexp.MustCompile(`\w\.(GET|POST|PUT|DELETE|PATCH|OPTIONS|HEAD)\s*\(\s*"(/[^"]*)"`)
	reRails      = regexp.MustCompile(`^\s*(get|post|put|patch|delete)\s+['"](/[^'"]*)['"]`)
	reExpress    = regexp.MustCompile(`\b[A-Za-z_$][\w$]*\.(get|post|put|delete|patch|options|head|all)\s*\(\s*['"](/[^'"]*)['"]`)
)

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "OPTIONS": true, "HEAD": true,
}

// Endpoints extracts HTTP route declarations from the catalog. The rules
// cover the common declaration styles per language; distinctive framework
// syntax is tried before the generic receiver.method('/path') shape to keep
// false positives down.
func Endpoints(ctx context.Context, files []t.FileRecord) ([]t.Endpoint, error) {
	var endpoints []t.Endpoint
	seen := map[string]bool{}
	add := func(ep t.Endpoint) {
		key := ep.Method + "\x00" + ep.Route + "\x00" + ep.File
		if seen[key] || len(endpoints) >= maxEndpoints {
			return
		}
		seen[key] = true
		endpoints = append(endpoints, ep)
	}

	for i, f := range files {
		if err := checkCtx(ctx, i); err != nil {
			return nil, err
		}
		if f.Content == "" || len(endpoints) >= maxEndpoints {
			continue
		}
		scanLines(f.Content, func(lineNo int, line string) {
			for _, ep := range scanRouteLine(f.Path, line, lineNo) {
				add(ep)
			}
		})
	}
	sortEndpoints(endpoints)
	return endpoints, nil
}

// scanRouteLine tries each route rule against one line and stops at the
// first that matches.
func scanRouteLine(filePath, line string, lineNo int) []t.Endpoint {
	one := func(method, route string) []t.Endpoint {
		return []t.Endpoint{{Method: method, Route: route, File: filePath, Line: lineNo}}
	}

	if m := reLaravel.FindStringSubmatch(line); m != nil {
		return one(normalizeMethod(m[1]), m[2])
	}
	if m := reSpring.FindStringSubmatch(line); m != nil {
		return one(strings.ToUpper(m[1]), m[2])
	}
	if m := reSpringAny.FindStringSubmatch(line); m != nil {
		return one("ANY", m[1])
	}
	if m := reNest.FindStringSubmatch(line); m != nil {
		route := m[2]
		if route == "" {
			route = "/"
		}
		return one(strings.ToUpper(m[1]), route)
	}
	if m := reFlaskRoute.FindStringSubmatch(line); m != nil {
		route := m[1]
		if verbs := reFlaskVerbs.FindStringSubmatch(line); verbs != nil {
			var out []t.Endpoint
			for _, v := range strings.Split(verbs[1], ",") {
				method := strings.ToUpper(strings.Trim(strings.TrimSpace(v), `'"`))
				if httpMethods[method] {
					out = append(out, t.Endpoint{Method: method, Route: route, File: filePath, Line: lineNo})
				}
			}
			if len(out) > 0 {
				return out
			}
		}
		return one("GET", route)
	}
	if m := reDecorator.FindStringSubmatch(line); m != nil {
		return one(strings.ToUpper(m[1]), m[2])
	}
	if m := reHandleFunc.FindStringSubmatch(line); m != nil {
		method, route := "ANY", m[1]
		if parts := strings.SplitN(route, " ", 2); len(parts) == 2 && httpMethods[parts[0]] {
			method, route = parts[0], parts[1]
		}
		return one(method, route)
	}
	if m := reGoRouter.FindStringSubmatch(line); m != nil {
		return one(m[1], m[2])
	}
	if strings.Contains(filePath, "routes") {
		if m := reRails.FindStringSubmatch(line); m != nil {
			return one(strings.ToUpper(m[1]), m[2])
		}
	}
	if m := reExpress.FindStringSubmatch(line); m != nil {
		return one(normalizeMethod(m[1]), m[2])
	}
	return nil
}

func normalizeMethod(m string) string {
	m = strings.ToUpper(m)
	if m == "ALL" || m == "ANY" {
		return "ANY"
	}
	return m
}
