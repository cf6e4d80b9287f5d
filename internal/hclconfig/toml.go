package hclconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/config"
	"github.com/vk/bozogo/internal/ctxlog"
)

// TOMLInterpreter applies static TOML files: tables become groups and keys
// become values. Keys are applied in document order.
type TOMLInterpreter struct{}

// Exec decodes src and applies it to t.
func (TOMLInterpreter) Exec(ctx context.Context, t *config.Tree, filename string, src []byte) error {
	var doc map[string]any
	md, err := toml.Decode(string(src), &doc)
	if err != nil {
		return builderr.WrapConfig(err, "failed to parse %s", filename)
	}
	keys := md.Keys()
	ctxlog.FromContext(ctx).Debug("Executing TOML configuration file.", "file", filename, "keys", len(keys))

	for _, key := range keys {
		v, ok := lookup(doc, key)
		if !ok {
			continue
		}
		if _, isTable := v.(map[string]any); isTable {
			err = within(t, key, nil)
		} else {
			scalar, convErr := tomlScalar(v)
			if convErr != nil {
				return builderr.WrapConfig(convErr, "%s: invalid value for %q", filename, key.String())
			}
			last := key[len(key)-1]
			err = within(t, key[:len(key)-1], func(t *config.Tree) error {
				return t.Set(last, scalar)
			})
		}
		if err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}
	return nil
}

// within opens the groups named by path, one inside the next, and runs body
// in the innermost one.
func within(t *config.Tree, path []string, body func(*config.Tree) error) error {
	if len(path) == 0 {
		if body == nil {
			return nil
		}
		return body(t)
	}
	return t.Group(path[0], func(t *config.Tree) error {
		return within(t, path[1:], body)
	})
}

// lookup walks doc along key. Keys nested under arrays of tables are not
// reachable and report false.
func lookup(doc map[string]any, key toml.Key) (any, bool) {
	var cur any = doc
	for _, seg := range key {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func tomlScalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("%T is not a scalar; use a table for nested values", v)
}
