package session

import (
	"context"
	"fmt"
)

type contextKey string

// ContextKey is the key a Store is stored under. It is a plain string type so
// that ssh.Context.SetValue callers can use it directly.
const ContextKey contextKey = "asci.session"

// WithStore returns a child context that carries s.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ContextKey, s)
}

// FromContext returns the Store of the enclosing scope.
func FromContext(ctx context.Context) (*Store, error) {
	if ctx == nil {
		return nil, ErrNoSessionScope
	}
	s, ok := ctx.Value(ContextKey).(*Store)
	if !ok || s == nil {
		return nil, ErrNoSessionScope
	}
	return s, nil
}

// MustFromContext is FromContext for call sites where a missing scope is a
// composition bug.
func MustFromContext(ctx context.Context) *Store {
	s, err := FromContext(ctx)
	if err != nil {
		panic(fmt.Sprintf("session.MustFromContext: %v", err))
	}
	return s
}
