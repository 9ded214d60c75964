package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrNoConnectionString     = errors.New("no analytical database connection string configured")
	ErrCredentialsKeyMismatch = errors.New("connection string was encrypted with a different key")
)
