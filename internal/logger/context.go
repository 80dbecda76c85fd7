package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithFields attaches fields that the *Context log methods emit.
func ContextWithFields(ctx context.Context, kv ...interface{}) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]zap.Field)
	fields := append(append([]zap.Field(nil), prev...), toFields(kv)...)
	return context.WithValue(ctx, ctxKey{}, fields)
}

func contextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return append([]zap.Field(nil), fields...)
}
