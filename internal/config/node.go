package config

import (
	"fmt"

	"github.com/vk/bozogo/internal/builderr"
)

// Node is a named group holding scalar values and child groups. A key names
// either a value or a child, never both.
type Node struct {
	path     []string
	keys     []string
	values   map[string]any
	children map[string]*Node
}

func newNode(path []string) *Node {
	return &Node{
		path:     path,
		values:   make(map[string]any),
		children: make(map[string]*Node),
	}
}

// Path returns the segments leading to this node. The root has an empty path.
func (n *Node) Path() []string {
	return append([]string(nil), n.path...)
}

// Keys returns every key held by the node, values and children alike, in the
// order they were first defined.
func (n *Node) Keys() []string {
	return append([]string(nil), n.keys...)
}

// Value returns the scalar stored under key.
func (n *Node) Value(key string) (any, bool) {
	v, ok := n.values[key]
	return v, ok
}

// Child returns the group stored under key.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

// ensureChild returns the child group named key, creating it on first use.
func (n *Node) ensureChild(key string) (*Node, error) {
	if child, ok := n.children[key]; ok {
		return child, nil
	}
	if _, ok := n.values[key]; ok {
		return nil, n.conflict(key, "a value", "a group")
	}
	child := newNode(append(n.Path(), key))
	n.children[key] = child
	n.keys = append(n.keys, key)
	return child, nil
}

func (n *Node) setValue(key string, value any) error {
	if _, ok := n.children[key]; ok {
		return n.conflict(key, "a group", "a value")
	}
	if _, ok := n.values[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.values[key] = value
	return nil
}

func (n *Node) conflict(key, existing, wanted string) error {
	return &builderr.ConfigurationError{
		Walked: n.Path(),
		Reason: fmt.Sprintf("%s already holds %s called '%s', cannot redefine it as %s",
			location(n.path), existing, key, wanted),
		Err: builderr.ErrKeyConflict,
	}
}

// snapshot copies the node into plain maps. Scalars are immutable so the
// copy shares nothing with the live tree.
func (n *Node) snapshot() map[string]any {
	out := make(map[string]any, len(n.keys))
	for _, key := range n.keys {
		if child, ok := n.children[key]; ok {
			out[key] = child.snapshot()
			continue
		}
		out[key] = n.values[key]
	}
	return out
}
