package vcs

import "errors"

// Common errors returned by repository adapter operations.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, vcs.ErrRefNotFound) {
//	    // branch has not been created yet
//	}
var (
	// ErrNotInRepo is returned when the operation requires being inside
	// a repository but none was found.
	ErrNotInRepo = errors.New("not in a repository")

	// ErrEngineNotAvailable is returned when the underlying engine binary
	// is not installed or too old.
	ErrEngineNotAvailable = errors.New("version-control engine not available")

	// ErrRefNotFound is returned when a branch does not exist, locally
	// or on the remote being queried.
	ErrRefNotFound = errors.New("reference not found")

	// ErrStaleRef is returned by UpdateRef when the branch no longer
	// points at the expected old value. The caller raced another writer
	// and must re-read before retrying.
	ErrStaleRef = errors.New("reference moved concurrently")

	// ErrObjectNotFound is returned when a blob, tree, or commit id does
	// not resolve to a stored object.
	ErrObjectNotFound = errors.New("object not found")

	// ErrNoRemote is returned when an operation requires a remote but
	// none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrPushRejected is returned when a push is rejected because the
	// remote branch moved past the expected value.
	ErrPushRejected = errors.New("push rejected by remote")
)

// IsRepositoryError reports whether err is a transport or ref-race
// failure that the caller should surface verbatim and never retry
// automatically.
func IsRepositoryError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStaleRef) ||
		errors.Is(err, ErrPushRejected) ||
		errors.Is(err, ErrNoRemote) ||
		errors.Is(err, ErrEngineNotAvailable)
}

// IsUserActionRequired reports whether err requires the user to act
// (typically re-running synchronization after concurrent remote work).
func IsUserActionRequired(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPushRejected) || errors.Is(err, ErrStaleRef)
}
