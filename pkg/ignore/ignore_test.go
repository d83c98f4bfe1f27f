package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	matcher, err := NewMatcher(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".cv", true},
		{".cv/objects/aa", true}, // 子路径也应该被忽略
		{".git", true},
		{"config.yaml", true},
		{".cvignore", true},
		{".DS_Store", true},
		{"main.go", false},
		{"data/model.bin", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	tmpDir := t.TempDir()
	ignoreContent := `
# 注释
*.log
temp
!important.log
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, IgnoreFile), []byte(ignoreContent), 0644))

	matcher, err := NewMatcher(tmpDir)
	require.NoError(t, err)

	tests := []struct {
		path     string
		shouldIg bool
	}{
		// 默认规则依然生效
		{".cv", true},
		{"config.yaml", true},

		{"app.log", true},
		{"logs/error.log", true},
		{"temp", true},
		{"temp/file", true},
		{"main.go", false},
		{"important.log", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Matches("anything"))
}

func TestMatcher_Walk(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"a.bin",
		"sub/b.bin",
		"sub/debug.log",
		".cv/objects/xx",
		"temp/scratch.bin",
	} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(p), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFile), []byte("*.log\ntemp\n"), 0644))

	matcher, err := NewMatcher(root)
	require.NoError(t, err)

	files, err := matcher.Walk(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.bin", "sub/b.bin"}, files)
}
