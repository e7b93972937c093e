package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/recipesync/internal/remote"
)

// ErrInFlight is returned when a toggle for the same favorite is already
// running. The second call is dropped, not queued.
var ErrInFlight = errors.New("favorite toggle already in flight")

// ErrDeclined is returned when the Confirmer refuses an unlike.
var ErrDeclined = errors.New("unlike not confirmed")

// SyncError is a failed toggle. The engine has already rolled back the
// optimistic state when it returns one.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// Key is the favorite key the toggle was for.
	Key string

	// Status and Body are set for server rejections.
	Status int
	Body   string

	// Err is the underlying cause, if any.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeUnauthenticated indicates no usable token.
	ErrCodeUnauthenticated SyncErrorCode = "UNAUTHENTICATED"

	// ErrCodeNetworkFailure indicates a transport error or timeout.
	ErrCodeNetworkFailure SyncErrorCode = "NETWORK_FAILURE"

	// ErrCodeServerRejection indicates a non-2xx response.
	ErrCodeServerRejection SyncErrorCode = "SERVER_REJECTION"

	// ErrCodeIdentityAmbiguity indicates an unlike with no server code
	// anywhere. Toggle resolves it locally; it is only surfaced by callers
	// that ask for a server-side unlike explicitly.
	ErrCodeIdentityAmbiguity SyncErrorCode = "IDENTITY_AMBIGUITY"

	// ErrCodeStoreFailure indicates the local store could not be read or
	// written.
	ErrCodeStoreFailure SyncErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%s)", e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code SyncErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsUnauthenticated returns true if err is an UNAUTHENTICATED SyncError.
func IsUnauthenticated(err error) bool { return hasCode(err, ErrCodeUnauthenticated) }

// IsNetworkFailure returns true if err is a NETWORK_FAILURE SyncError.
func IsNetworkFailure(err error) bool { return hasCode(err, ErrCodeNetworkFailure) }

// IsServerRejection returns true if err is a SERVER_REJECTION SyncError.
func IsServerRejection(err error) bool { return hasCode(err, ErrCodeServerRejection) }

// IsIdentityAmbiguity returns true if err is an IDENTITY_AMBIGUITY SyncError.
func IsIdentityAmbiguity(err error) bool { return hasCode(err, ErrCodeIdentityAmbiguity) }

// IsStoreFailure returns true if err is a STORE_FAILURE SyncError.
func IsStoreFailure(err error) bool { return hasCode(err, ErrCodeStoreFailure) }

// classify turns an error from the LikeService into a SyncError.
func classify(key, action string, err error) *SyncError {
	if errors.Is(err, remote.ErrNoToken) {
		return newUnauthenticated(key, err)
	}

	var status *remote.StatusError
	if errors.As(err, &status) {
		if status.Unauthorized() {
			return &SyncError{
				Code:    ErrCodeUnauthenticated,
				Message: action + " refused: not logged in",
				Key:     key,
				Status:  status.Status,
				Body:    string(status.Body),
				Err:     err,
			}
		}
		return &SyncError{
			Code:    ErrCodeServerRejection,
			Message: fmt.Sprintf("%s rejected by server (status %d)", action, status.Status),
			Key:     key,
			Status:  status.Status,
			Body:    string(status.Body),
			Err:     err,
		}
	}

	return &SyncError{
		Code:    ErrCodeNetworkFailure,
		Message: action + " failed",
		Key:     key,
		Err:     err,
	}
}

func newUnauthenticated(key string, err error) *SyncError {
	return &SyncError{
		Code:    ErrCodeUnauthenticated,
		Message: "login required",
		Key:     key,
		Err:     err,
	}
}

func newStoreFailure(key, action string, err error) *SyncError {
	return &SyncError{
		Code:    ErrCodeStoreFailure,
		Message: action + " failed",
		Key:     key,
		Err:     err,
	}
}
