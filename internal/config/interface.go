package config

import "context"

// Interpreter executes the authoring statements of one configuration file
// against a tree, in file order.
type Interpreter interface {
	Exec(ctx context.Context, t *Tree, filename string, src []byte) error
}

// InterpreterFunc adapts a function to the Interpreter interface.
type InterpreterFunc func(ctx context.Context, t *Tree, filename string, src []byte) error

// Exec implements Interpreter.
func (f InterpreterFunc) Exec(ctx context.Context, t *Tree, filename string, src []byte) error {
	return f(ctx, t, filename, src)
}
