// Package requestcontext carries per-request identity through context so
// handlers and services stay free of transport details.
package requestcontext

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type requestIDKey struct{}
type callerKey struct{}

// WithRequestID stores the correlation ID for this request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation ID, or "" when none was set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithCaller stores the authenticated wallet address of the caller.
func WithCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// Caller returns the authenticated wallet, and whether one was set.
func Caller(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerKey{}).(common.Address)
	return addr, ok
}
