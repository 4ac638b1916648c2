package logging

import "context"

type attrsKey struct{}

// WithAttrs returns a context whose key–value pairs are added to every
// record logged with it. Pairs accumulate across nested calls.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev := attrsFrom(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(attrsKey{}).([]any)
	return a
}

// withContextAttrs prepends ctx's pairs to args.
func withContextAttrs(ctx context.Context, args []any) []any {
	a := attrsFrom(ctx)
	if len(a) == 0 {
		return args
	}
	out := make([]any, 0, len(a)+len(args))
	out = append(out, a...)
	return append(out, args...)
}
