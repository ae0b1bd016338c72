package admin

import "errors"

var (
	// ErrUnauthorized means the credential or session token is missing, wrong or expired.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest means the mutation lacks an id or names an unknown action.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound means the target id is absent from the store that was mutated.
	ErrNotFound = errors.New("order not found")
	// ErrUpstreamUnavailable marks a structured store failure that was
	// recovered by falling back to the file store. It is logged, not returned.
	ErrUpstreamUnavailable = errors.New("structured store unavailable")
	// ErrInternal means both stores failed.
	ErrInternal = errors.New("internal error")
	// ErrNotConfigured means no admin credential is set, so nobody can log in.
	ErrNotConfigured = errors.New("admin credential not configured")
)
