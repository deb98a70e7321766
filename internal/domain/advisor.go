package domain

import "context"

// Advisor is the request/response boundary to the remote advice service.
// A nil error means the returned text is the advice to show.
type Advisor interface {
	Advise(ctx context.Context, query string) (string, error)
}

type AdvisorFunc func(ctx context.Context, query string) (string, error)

func (f AdvisorFunc) Advise(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}
