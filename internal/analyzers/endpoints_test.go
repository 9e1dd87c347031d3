package analyzers

import (
	"context"
	"reflect"
	"testing"

	types "repolens/internal/types"
)

func TestEndpointsPerFramework(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		content string
		want    []types.Endpoint
	}{
		{
			name:    "express get",
			path:    "src/routes/users.js",
			content: "app.get('/users', listUsers)",
			want:    []types.Endpoint{{Method: "GET", Route: "/users", File: "src/routes/users.js", Line: 1}},
		},
		{
			name:    "express router post",
			path:    "src/api.ts",
			content: "router.post('/users', createUser)",
			want:    []types.Endpoint{{Method: "POST", Route: "/users", File: "src/api.ts", Line: 1}},
		},
		{
			name:    "express all verb",
			path:    "src/api.ts",
			content: "app.all('/admin', guard)",
			want:    []types.Endpoint{{Method: "ANY", Route: "/admin", File: "src/api.ts", Line: 1}},
		},
		{
			name:    "map get is not a route",
			path:    "src/cache.js",
			content: "const v = cache.get('userId')",
			want:    nil,
		},
		{
			name:    "flask route with methods",
			path:    "app/views.py",
			content: "@app.route('/items', methods=['GET', 'POST'])",
			want: []types.Endpoint{
				{Method: "GET", Route: "/items", File: "app/views.py", Line: 1},
				{Method: "POST", Route: "/items", File: "app/views.py", Line: 1},
			},
		},
		{
			name:    "flask route default method",
			path:    "app/views.py",
			content: "@app.route('/health')",
			want:    []types.Endpoint{{Method: "GET", Route: "/health", File: "app/views.py", Line: 1}},
		},
		{
			name:    "fastapi decorator",
			path:    "app/main.py",
			content: "@router.post('/login')",
			want:    []types.Endpoint{{Method: "POST", Route: "/login", File: "app/main.py", Line: 1}},
		},
		{
			name:    "gin handler",
			path:    "internal/server/router.go",
			content: `r.GET("/ping", pingHandler)`,
			want:    []types.Endpoint{{Method: "GET", Route: "/ping", File: "internal/server/router.go", Line: 1}},
		},
		{
			name:    "go mux method pattern",
			path:    "cmd/api/main.go",
			content: `mux.HandleFunc("GET /api/users", usersHandler)`,
			want:    []types.Endpoint{{Method: "GET", Route: "/api/users", File: "cmd/api/main.go", Line: 1}},
		},
		{
			name:    "go mux bare pattern",
			path:    "cmd/api/main.go",
			content: `http.HandleFunc("/legacy", legacyHandler)`,
			want:    []types.Endpoint{{Method: "ANY", Route: "/legacy", File: "cmd/api/main.go", Line: 1}},
		},
		{
			name:    "spring annotation",
			path:    "src/main/java/OwnerController.java",
			content: `@GetMapping("/owners")`,
			want:    []types.Endpoint{{Method: "GET", Route: "/owners", File: "src/main/java/OwnerController.java", Line: 1}},
		},
		{
			name:    "nest decorator without route",
			path:    "src/cats.controller.ts",
			content: "@Post()",
			want:    []types.Endpoint{{Method: "POST", Route: "/", File: "src/cats.controller.ts", Line: 1}},
		},
		{
			name:    "laravel route",
			path:    "routes/web.php",
			content: "Route::get('/home', [HomeController::class, 'index']);",
			want:    []types.Endpoint{{Method: "GET", Route: "/home", File: "routes/web.php", Line: 1}},
		},
		{
			name:    "rails routes file",
			path:    "config/routes.rb",
			content: "get '/login', to: 'sessions#new'",
			want:    []types.Endpoint{{Method: "GET", Route: "/login", File: "config/routes.rb", Line: 1}},
		},
		{
			name:    "rails syntax outside routes file",
			path:    "app/models/user.rb",
			content: "get '/login', to: 'sessions#new'",
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := []types.FileRecord{{Path: tc.path, Content: tc.content}}
			got, err := Endpoints(context.Background(), files)
			if err != nil {
				t.Fatalf("endpoints: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("endpoints = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEndpointsDeduplicates(t *testing.T) {
	content := "app.get('/users', a)\napp.get('/users', b)\napp.post('/users', c)"
	got, err := Endpoints(context.Background(), []types.FileRecord{{Path: "api.js", Content: content}})
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("endpoints = %v, want GET and POST once each", got)
	}
}

func TestEndpointsMultipleFilesSorted(t *testing.T) {
	files := []types.FileRecord{
		{Path: "z.js", Content: "app.get('/z', h)"},
		{Path: "a.js", Content: "app.get('/a', h)"},
	}
	got, err := Endpoints(context.Background(), files)
	if err != nil {
		t.Fatalf("endpoints: %v", err)
	}
	if len(got) != 2 || got[0].File != "a.js" || got[1].File != "z.js" {
		t.Fatalf("unexpected order: %v", got)
	}
}
