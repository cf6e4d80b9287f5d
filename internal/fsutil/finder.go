// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Glob returns the files under root whose slash-separated path relative to
// root matches pattern. Segments use path.Match syntax, and a "**" segment
// matches any number of directories. Results are sorted and include root.
func Glob(root, pattern string) ([]string, error) {
	if pattern == "" {
		panic("pattern must not be empty")
	}
	pattern = filepath.ToSlash(pattern)
	if _, err := path.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	want := strings.Split(pattern, "/")

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if match(want, strings.Split(filepath.ToSlash(rel), "/")) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// match reports whether the path segments satisfy the pattern segments.
func match(pattern, segs []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(segs); i++ {
				if match(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], segs[0]); !ok {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	return len(segs) == 0
}

// GlobAll expands every pattern under root, drops files matched by any of the
// exclude patterns, and returns the remaining paths sorted and deduplicated.
func GlobAll(root string, include, exclude []string) ([]string, error) {
	excluded := make(map[string]struct{})
	for _, p := range exclude {
		files, err := Glob(root, p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			excluded[f] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, p := range include {
		files, err := Glob(root, p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, skip := excluded[f]; skip {
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out, nil
}
