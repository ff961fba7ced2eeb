package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**", "any/file.txt", true},
		{"public/**", "public/css/site.css", true},
		{"public/**", "public", true},
		{"public/**", "publicity/a.txt", false},
		{"**/*.js", "src/app.js", true},
		{"**/*.js", "app.js", true},
		{"**/*.js", "src/app.ts", false},
		{"**/node_modules/**", "web/node_modules/pkg/index.js", true},
		{"**/node_modules/**", "web/src/index.js", false},
		{"src/**/*.go", "src/a/b/c.go", true},
		{"src/**/*.go", "src/c.go", true},
		{"src/**/*.go", "lib/c.go", false},
		{"*.log", "logs/today.log", true},
		{"*.log", "today.log", true},
		{"docs", "docs/index.md", true},
		{"tmp/", "tmp/cache/x", true},
		{"./README.md", "README.md", true},
		{"src/*.go", "src/a.go", true},
		{"src/*.go", "src/sub/a.go", false},
		{"", "a.txt", false},
		{"public/**/*.{css,js}", "public/a/site.css", true},
		{"public/**/*.{css,js}", "public/a/site.map", false},
		{"build", "build", true},
		{"[", "[", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.path))
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	f := Filter{
		Include: []string{"public/**", "*.html"},
		Exclude: []string{"**/*.map", "public/tmp/**"},
	}

	assert.True(t, f.Matches("public/js/app.js"))
	assert.True(t, f.Matches("index.html"))
	assert.False(t, f.Matches("public/js/app.js.map"))
	assert.False(t, f.Matches("public/tmp/x.js"))
	assert.False(t, f.Matches("src/main.go"))

	all := Filter{Exclude: []string{".git/**"}}
	assert.True(t, all.Matches("src/main.go"))
	assert.False(t, all.Matches(".git/HEAD"))
}
