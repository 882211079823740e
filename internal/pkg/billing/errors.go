package billing

import "errors"

var (
	// ErrSignatureInvalid covers every webhook verification failure: missing
	// header, wrong secret, tampered body or stale timestamp.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrMalformedEvent   = errors.New("webhook event malformed")

	ErrInvalidCheckoutRequest = errors.New("invalid checkout request")
	ErrInvalidPortalRequest   = errors.New("invalid portal request")
	ErrProviderConfigMissing  = errors.New("billing provider is not configured")

	ErrRecordStoreUnavailable = errors.New("membership record store unavailable")
	ErrRecordNotFound         = errors.New("no membership record matched")
)
