package audit

import "context"

type requesterKey struct{}

// WithRequester attaches a requesting-client display string to the context.
// Transport middleware sets it; Emit call sites read it back.
func WithRequester(ctx context.Context, requester string) context.Context {
	return context.WithValue(ctx, requesterKey{}, requester)
}

// RequesterFromContext returns the requester display string, or "" when the
// request did not pass through the metadata middleware.
func RequesterFromContext(ctx context.Context) string {
	requester, _ := ctx.Value(requesterKey{}).(string)
	return requester
}
