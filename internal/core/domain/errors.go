package domain

import "errors"

var (
	// ErrNotFound means the subdomain or instance could not be resolved.
	ErrNotFound = errors.New("server not found")

	// ErrAccessDenied is the uniform denial for ownership failures. It is
	// deliberately indistinguishable from ErrNotFound at the API surface so
	// that probing for other tenants' subdomains reveals nothing.
	ErrAccessDenied = errors.New("cannot access server")

	// ErrQuotaExceeded means the tenant already owns its maximum number of
	// concurrent instances.
	ErrQuotaExceeded = errors.New("server quota exceeded")

	// ErrSubdomainConflict means the subdomain is already taken, by any tenant.
	ErrSubdomainConflict = errors.New("subdomain already in use")

	// ErrConnectionRefused means the instance's console endpoint is not
	// reachable; the container may be starting or stopped.
	ErrConnectionRefused = errors.New("console connection refused")

	// ErrProtocol means the remote console returned a malformed handshake or
	// response frame.
	ErrProtocol = errors.New("console protocol error")

	// ErrTimeout means a blocking external call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrRuntime wraps failures of the underlying container runtime.
	ErrRuntime = errors.New("container runtime failure")
)
