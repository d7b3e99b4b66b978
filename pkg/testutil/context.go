package testutil

import (
	"net/http"

	"lendgate/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithUserID(req *http.Request, userID string) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

// WithAuth adds user ID, email, and role to the request context, the typical
// state for an authenticated request.
func WithAuth(req *http.Request, userID, email, role string) *http.Request {
	ctx := req.Context()
	if userID != "" {
		ctx = requestcontext.WithUserID(ctx, userID)
	}
	if email != "" {
		ctx = requestcontext.WithEmail(ctx, email)
	}
	if role != "" {
		ctx = requestcontext.WithRole(ctx, role)
	}
	return req.WithContext(ctx)
}
