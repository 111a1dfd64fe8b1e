package auth

import (
	"context"
	"errors"

	"queueapp/queue-web/internal/identity"
)

var ErrUnauthenticated = errors.New("authentication required")

// RequireIdentity returns the caller or ErrUnauthenticated. It only proves
// someone is signed in; storage calls must still filter rows by the returned id.
func RequireIdentity(ctx context.Context) (identity.User, error) {
	st := FromContext(ctx)
	if st.User == nil || st.User.ID == "" {
		return identity.User{}, ErrUnauthenticated
	}
	return *st.User, nil
}
