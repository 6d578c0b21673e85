package treasury

import "errors"

var (
	// ErrAlreadyInitialised is returned when initialising over an existing
	// treasury.
	ErrAlreadyInitialised = errors.New("treasury: already initialised")
	// ErrNotInitialised is returned when an operation runs before initialise.
	ErrNotInitialised = errors.New("treasury: not initialised")
	// ErrAccountNotFound is returned when a per-user record does not exist.
	ErrAccountNotFound = errors.New("treasury: account not found")
	// ErrAccountExists is returned when creating a per-user record that
	// already exists.
	ErrAccountExists = errors.New("treasury: account already exists")
	// ErrUnableToDeserialize is returned when stored state fails to decode.
	ErrUnableToDeserialize = errors.New("treasury: unable to deserialize account")
	// ErrUnexpectedAccount is returned when a stored record does not belong to
	// the key it was loaded under.
	ErrUnexpectedAccount = errors.New("treasury: unexpected account")
	// ErrCollaboratorNotConfigured is returned when an operation needs an
	// external collaborator that was never wired.
	ErrCollaboratorNotConfigured = errors.New("treasury: collaborator not configured")
)
