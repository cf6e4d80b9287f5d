package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/ctxlog"
)

// LoadRecord describes one file layered onto a tree.
type LoadRecord struct {
	Seq  int
	Path string
}

// Tree owns the root node and the authoring cursor used while groups are
// open. It is not safe for concurrent writers; once loading is finished it is
// only read.
type Tree struct {
	root         *Node
	stack        []*Node
	maxDepth     int
	interpreters map[string]Interpreter
	loads        []LoadRecord
}

// Option customizes a Tree.
type Option func(*Tree)

// WithInterpreter registers the interpreter used by Load for files with the
// given extension (including the leading dot).
func WithInterpreter(ext string, interp Interpreter) Option {
	return func(t *Tree) {
		t.interpreters[strings.ToLower(ext)] = interp
	}
}

// WithMaxDepth limits how deeply groups may nest. Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(t *Tree) {
		t.maxDepth = depth
	}
}

// NewTree creates an empty tree whose cursor rests on the root.
func NewTree(opts ...Option) *Tree {
	root := newNode(nil)
	t := &Tree{
		root:         root,
		stack:        []*Node{root},
		interpreters: make(map[string]Interpreter),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Cursor returns the path of the innermost open group.
func (t *Tree) Cursor() []string {
	return t.top().Path()
}

func (t *Tree) top() *Node {
	return t.stack[len(t.stack)-1]
}

// Group opens the child group called name under the cursor, creating it if
// needed, runs body with the cursor on that group and closes it again. Opening
// an existing group accumulates into it.
func (t *Tree) Group(name string, body func(*Tree) error) error {
	if err := validateKey(name); err != nil {
		return err
	}
	if t.maxDepth > 0 && len(t.stack) > t.maxDepth {
		return builderr.Configf("%s: group '%s' exceeds the maximum nesting depth of %d",
			location(t.top().path), name, t.maxDepth)
	}
	child, err := t.top().ensureChild(name)
	if err != nil {
		return err
	}
	t.stack = append(t.stack, child)
	defer func() { t.stack = t.stack[:len(t.stack)-1] }()
	if body == nil {
		return nil
	}
	return body(t)
}

// Set stores value under key in the innermost open group. Values may not be
// set on the root.
func (t *Tree) Set(key string, value any) error {
	if len(t.stack) == 1 {
		return &builderr.ConfigurationError{
			Reason: fmt.Sprintf("cannot set '%s'", key),
			Err:    builderr.ErrOutsideGroup,
		}
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if !isScalar(value) {
		return builderr.Configf("%s.%s: value of type %T is not a scalar (string, number or bool)",
			location(t.top().path), key, value)
	}
	return t.top().setValue(key, value)
}

// Load reads the file at path and executes it against the tree with the
// interpreter registered for its extension. Later loads layer on top of
// earlier ones. A missing file is reported as an I/O error wrapping
// fs.ErrNotExist; callers decide whether that is fatal.
func (t *Tree) Load(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)

	ext := strings.ToLower(filepath.Ext(path))
	interp, ok := t.interpreters[ext]
	if !ok {
		return builderr.Configf("no configuration interpreter registered for %q files (%s)", ext, path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	logger.Debug("Loading configuration file.", "path", path, "seq", len(t.loads)+1)
	if err := interp.Exec(ctx, t, path, src); err != nil {
		return err
	}
	t.loads = append(t.loads, LoadRecord{Seq: len(t.loads) + 1, Path: path})
	return nil
}

// Loads lists the files layered onto the tree, in load order.
func (t *Tree) Loads() []LoadRecord {
	return append([]LoadRecord(nil), t.loads...)
}

// Resolve returns the value at path. See Resolve.
func (t *Tree) Resolve(path ...string) (any, error) {
	return Resolve(t, path)
}

// Snapshot returns a deep copy of the tree as nested maps. Later changes to
// the tree are not reflected in a snapshot taken earlier.
func (t *Tree) Snapshot() map[string]any {
	return t.root.snapshot()
}

func validateKey(key string) error {
	if key == "" {
		return builderr.Configf("configuration keys must not be empty")
	}
	for _, r := range key {
		ok := r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return builderr.Configf("invalid configuration key %q: only letters, digits, '_' and '-' are allowed", key)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func location(path []string) string {
	if len(path) == 0 {
		return "Root"
	}
	return strings.Join(path, ".")
}
