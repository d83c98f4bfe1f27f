// Package ignore 决定 `cv encrypt <dir>` 遍历目录时跳过哪些文件。
package ignore

import (
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile 是目录根下的用户规则文件
const IgnoreFile = ".cvignore"

// defaultRules 总是生效
var defaultRules = []string{
	// 发布目录本身，否则会把自己加密的 Chunk 再加密一遍
	".cv",
	".git",

	// 凭据
	"config.yaml",
	".env",
	IgnoreFile,

	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断一个相对路径是否应该被跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 编译默认规则，root 下有 .cvignore 时一并编译
func NewMatcher(root string) (*Matcher, error) {
	path := filepath.Join(root, IgnoreFile)
	if _, err := os.Stat(path); err != nil {
		return &Matcher{ignorer: gitignore.CompileIgnoreLines(defaultRules...)}, nil
	}
	ignorer, err := gitignore.CompileIgnoreFileAndLines(path, defaultRules...)
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 返回 true 表示跳过；path 相对于 root，使用 / 分隔
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}

// Walk 按字典序列出 root 下所有未被忽略的普通文件 (相对路径)
// 被忽略的目录整个跳过
func (m *Matcher) Walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if m.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}
