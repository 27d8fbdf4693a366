package billing

import "errors"

var (
	// ErrInvalidPayload is returned when the event body cannot be parsed
	// or is missing required fields
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrUnknownUser is returned when client_reference_id does not
	// resolve to an account
	ErrUnknownUser = errors.New("unknown user reference")
)
