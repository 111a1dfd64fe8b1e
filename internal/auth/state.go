package auth

import (
	"context"

	"queueapp/queue-web/internal/identity"
	"queueapp/queue-web/internal/session"
)

// State is the identity resolved for one request. Both fields are nil for
// anonymous requests.
type State struct {
	User    *identity.User
	Session *session.Envelope
}

func (s State) Authenticated() bool {
	return s.User != nil
}

func (s State) AccessToken() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.AccessToken
}

type stateKey struct{}

func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromContext returns the request's State, or an empty one.
func FromContext(ctx context.Context) State {
	st, _ := ctx.Value(stateKey{}).(State)
	return st
}

func resolved(ctx context.Context) bool {
	_, ok := ctx.Value(stateKey{}).(State)
	return ok
}
