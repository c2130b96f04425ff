package runtime

import (
	"context"
	"log/slog"
	"slices"

	"github.com/risor-io/risor/object"
)

// makeQualifyFn creates the "qualify" host function, which builds the
// field-qualified form of a rule key.
//
// qualify(field, kind) → "field:kind"
func makeQualifyFn() *object.Builtin {
	return object.NewBuiltin("qualify", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("qualify", 2, len(args))
		}

		field, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("qualify: field must be a string, got %s", args[0].Type())
		}

		kind, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("qualify: kind must be a string, got %s", args[1].Type())
		}

		if field.Value() == "" {
			return kind
		}
		return object.NewString(field.Value() + ":" + kind.Value())
	})
}

// makeNodeKindsFn creates the "node_kinds" host function.
//
// node_kinds(language) → sorted list of named node kinds
func makeNodeKindsFn() *object.Builtin {
	return object.NewBuiltin("node_kinds", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_kinds", 1, len(args))
		}

		lang, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("node_kinds: language must be a string, got %s", args[0].Type())
		}

		kinds := NodeKinds(lang.Value())
		if kinds == nil {
			return object.Errorf("node_kinds: unsupported language %q", lang.Value())
		}

		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, k)
		}
		slices.Sort(names)

		items := make([]object.Object, len(names))
		for i, n := range names {
			items[i] = object.NewString(n)
		}
		return object.NewList(items)
	})
}

// makeHasKindFn creates "has_kind", which lets a script guard rules on
// grammar versions that may lack a node kind.
//
// has_kind(language, kind) → bool
func makeHasKindFn() *object.Builtin {
	return object.NewBuiltin("has_kind", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("has_kind", 2, len(args))
		}

		lang, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("has_kind: language must be a string, got %s", args[0].Type())
		}

		kind, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("has_kind: kind must be a string, got %s", args[1].Type())
		}

		return object.NewBool(NodeKinds(lang.Value())[kind.Value()])
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	log *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.log.Info(msg, "source", "descriptor")
}

func (l *logObject) Warn(msg string) {
	l.log.Warn(msg, "source", "descriptor")
}

func (l *logObject) Error(msg string) {
	l.log.Error(msg, "source", "descriptor")
}
