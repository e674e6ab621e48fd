package logging

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
)

type accountKey struct{}

// WithAccountID tags ctx so every line logged with it names the account.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, accountKey{}, id)
}

// contextArgs returns the request-scoped key-value pairs carried by ctx:
// the chi request id and the authenticated account id, when present.
func contextArgs(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	if id := middleware.GetReqID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if id, ok := ctx.Value(accountKey{}).(string); ok && id != "" {
		args = append(args, "account_id", id)
	}
	return args
}
