package services

import "context"

type callerKey struct{}

// WithCaller attaches the identity of the requesting account to ctx.
func WithCaller(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, callerKey{}, account)
}

// CallerFrom returns the requesting account carried by ctx.
func CallerFrom(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(callerKey{}).(string)
	return account, ok && account != ""
}
