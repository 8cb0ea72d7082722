// Package auth carries the authenticated caller through a request and
// enforces owner scoping on goals and assets.
//
// The caller id is attached once by the HTTP layer after token verification
// and is read back from the context by services and tools. It is never taken
// from request bodies or tool arguments.
package auth

import (
	"context"
	"strings"

	apperrors "goalwise/internal/errors"
)

// CallerID is the opaque identifier of an authenticated user.
type CallerID string

type callerKey struct{}

// WithCaller returns a copy of ctx carrying id.
func WithCaller(ctx context.Context, id CallerID) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// RequireCaller returns the caller attached to ctx, or ErrUnauthenticated
// when there is none.
func RequireCaller(ctx context.Context) (CallerID, error) {
	id, ok := ctx.Value(callerKey{}).(CallerID)
	if !ok || strings.TrimSpace(string(id)) == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return id, nil
}

// Owned is implemented by every owner-scoped record.
type Owned interface {
	OwnerID() string
}

// RequireOwnership returns notFound unless entity belongs to caller. A nil
// entity is treated as missing, so a foreign record and an absent one are
// indistinguishable.
func RequireOwnership(entity Owned, caller CallerID, notFound *apperrors.AppError) error {
	if notFound == nil {
		notFound = apperrors.ErrNotFound
	}
	if entity == nil || caller == "" || entity.OwnerID() != string(caller) {
		return notFound
	}
	return nil
}
