// Package auditctx carries the authenticated caller through request contexts so that services can
// attribute activity log entries without taking HTTP types.
package auditctx

import "context"

// Actor is the caller behind a request.
type Actor struct {
	UserID    string
	Username  string
	SessionID string
	IPAddress string
	UserAgent string
}

// Anonymous reports whether no user is attached.
func (a Actor) Anonymous() bool {
	return a.UserID == ""
}

// Merge returns a with its blank fields taken from fallback.
func (a Actor) Merge(fallback Actor) Actor {
	pick := func(v, alt string) string {
		if v != "" {
			return v
		}
		return alt
	}
	return Actor{
		UserID:    pick(a.UserID, fallback.UserID),
		Username:  pick(a.Username, fallback.Username),
		SessionID: pick(a.SessionID, fallback.SessionID),
		IPAddress: pick(a.IPAddress, fallback.IPAddress),
		UserAgent: pick(a.UserAgent, fallback.UserAgent),
	}
}

type key struct{}

// WithActor stores the actor on ctx. A nil ctx is treated as context.Background.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key{}, actor)
}

// FromContext returns the stored actor.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(key{}).(Actor)
	return actor, ok
}
