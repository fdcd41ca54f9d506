package httpapi

import "context"

type contextKey int

const requestIDKey contextKey = iota

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// requestIDFromContext returns the correlation ID stamped by requestID,
// or "" if the request did not go through that middleware (e.g. a test
// calling a handler directly).
func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
