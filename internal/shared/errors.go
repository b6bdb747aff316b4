package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Storage errors
	ErrDatabase     = fmt.Errorf("database error")
	ErrLedgerWrite  = fmt.Errorf("completion ledger write failed")
	ErrItemNotFound = fmt.Errorf("item not found")
	ErrHashMissing  = fmt.Errorf("content hash unavailable")

	// Remote store errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnexpectedStatus   = fmt.Errorf("unexpected response status")
	ErrMalformedResponse  = fmt.Errorf("malformed response")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
