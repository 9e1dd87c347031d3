package catalog

import (
	"path/filepath"
	"strings"

	t "repolens/internal/types"
)

// languageByExt maps lowercased file extensions to language names. Only
// extensions listed here receive a Language on their FileRecord; everything
// else stays unclassified and is skipped by content-level analysis.
var languageByExt = map[string]string{
	".js":     "javascript",
	".jsx":    "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".py":     "python",
	".go":     "go",
	".java":   "java",
	".rb":     "ruby",
	".php":    "php",
	".rs":     "rust",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".cc":     "cpp",
	".hpp":    "cpp",
	".cs":     "csharp",
	".kt":     "kotlin",
	".swift":  "swift",
	".scala":  "scala",
	".vue":    "vue",
	".svelte": "svelte",
	".html":   "html",
	".css":    "css",
	".scss":   "css",
	".less":   "css",
	".sql":    "sql",
	".sh":     "shell",
	".yaml":   "yaml",
	".yml":    "yaml",
	".json":   "json",
	".toml":   "toml",
	".md":     "markdown",
}

// sourceLanguages are the languages the import extractor understands.
var sourceLanguages = map[string]bool{
	"javascript": true,
	"typescript": true,
	"python":     true,
	"go":         true,
	"java":       true,
	"ruby":       true,
	"php":        true,
	"rust":       true,
	"c":          true,
	"cpp":        true,
	"vue":        true,
	"svelte":     true,
}

// LanguageForPath infers a language from the file extension; empty when unknown.
func LanguageForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return languageByExt[ext]
}

// IsSourceLanguage reports whether the import extractor supports lang.
func IsSourceLanguage(lang string) bool {
	return sourceLanguages[strings.ToLower(strings.TrimSpace(lang))]
}

// Annotate fills in Name and Language for records that are missing them.
// The input slice is modified in place and returned.
func Annotate(files []t.FileRecord) []t.FileRecord {
	for i := range files {
		if files[i].Name == "" {
			files[i].Name = filepath.Base(files[i].Path)
		}
		if files[i].Language == "" {
			files[i].Language = LanguageForPath(files[i].Path)
		}
	}
	return files
}

// LanguageTotals counts catalog files per detected language. Unclassified
// files are counted under "other".
func LanguageTotals(files []t.FileRecord) map[string]int {
	totals := make(map[string]int)
	for _, f := range files {
		lang := f.Language
		if lang == "" {
			lang = "other"
		}
		totals[lang]++
	}
	return totals
}

// Analyzable reports whether a record carries content the import extractor
// can work with.
func Analyzable(f t.FileRecord) bool {
	return f.Content != "" && IsSourceLanguage(f.Language)
}
