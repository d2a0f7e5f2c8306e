package payments

import "errors"

// Error taxonomy for the payment flow. Sentinels are matched with errors.Is;
// call sites wrap them with the concrete reason.
var (
	// ErrValidation marks bad caller input; no provider call was made.
	ErrValidation = errors.New("validation failed")
	// ErrAuth marks a credential or token failure; the request is aborted
	// before any payment is attempted.
	ErrAuth = errors.New("m-pesa authentication failed")
	// ErrProviderUnavailable marks a transport failure talking to Daraja. The
	// gateway never retries a push on its own; the caller decides.
	ErrProviderUnavailable = errors.New("m-pesa unreachable")
	// ErrProviderRejected marks a business rejection from Daraja, surfaced
	// verbatim.
	ErrProviderRejected = errors.New("m-pesa rejected request")
	// ErrPersistence marks a local storage failure after the provider already
	// accepted the push; logged, never converted into a caller-facing failure.
	ErrPersistence = errors.New("persistence failed")
)
