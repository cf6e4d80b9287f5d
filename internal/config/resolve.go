package config

import (
	"strings"

	"github.com/vk/bozogo/internal/builderr"
)

// Resolve walks path from the root of t. Every segment but the last must name
// a group; the last must name a value. The first segment that does not
// resolve fails the walk with a ConfigurationError listing the keys present at
// that level.
func Resolve(t *Tree, path []string) (any, error) {
	if len(path) == 0 {
		return nil, builderr.Configf("attribute path must not be empty")
	}

	node := t.root
	for i, seg := range path {
		if i == len(path)-1 {
			if v, ok := node.values[seg]; ok {
				return v, nil
			}
		} else if child, ok := node.children[seg]; ok {
			node = child
			continue
		}
		return nil, &builderr.ConfigurationError{
			Walked:  node.Path(),
			Missing: seg,
			Known:   node.Keys(),
		}
	}
	// Unreachable: the loop returns on the last segment.
	return nil, nil
}

// ParsePath splits a dotted attribute path such as "example.one".
func ParsePath(dotted string) ([]string, error) {
	segments := strings.Split(dotted, ".")
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return nil, builderr.Configf("invalid attribute path %q", dotted)
		}
	}
	return segments, nil
}

// ResolveDotted resolves a dotted attribute path against t.
func ResolveDotted(t *Tree, dotted string) (any, error) {
	path, err := ParsePath(dotted)
	if err != nil {
		return nil, err
	}
	return Resolve(t, path)
}
