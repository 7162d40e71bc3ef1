package models

import "errors"

// Error categories. Handlers map these to HTTP status codes; specific errors
// below wrap exactly one of them.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDuplicateEntry        = errors.New("duplicate entry")
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized access")
	ErrExternalDependency    = errors.New("external dependency failed")
	ErrSignatureVerification = errors.New("signature verification failed")
	ErrInternalConfiguration = errors.New("internal configuration error")
)

// Error is a domain error that belongs to one of the categories above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Common errors used throughout the application
var (
	ErrInvalidIdentity               = newError(ErrInvalidInput, "exactly one of user id or guest session id is required")
	ErrUnsupportedPaymentMethodInput = newError(ErrInvalidInput, "unsupported payment method")
	ErrEmptyOrder                    = newError(ErrInvalidInput, "order has no items")
	ErrNegativeDiscount              = newError(ErrInvalidInput, "current price exceeds base price")
	ErrPaymentNotRetryable           = newError(ErrInvalidInput, "payment cannot be retried")

	ErrDuplicateCartItem    = newError(ErrDuplicateEntry, "item already exists in cart")
	ErrDuplicateOrderNumber = newError(ErrDuplicateEntry, "order number already exists")
	ErrEmailTaken           = newError(ErrDuplicateEntry, "user with this email already exists")
	ErrActiveCartExists     = newError(ErrDuplicateEntry, "an active cart already exists for this identity")

	ErrCartNotFound      = newError(ErrNotFound, "cart not found")
	ErrCartItemNotFound  = newError(ErrNotFound, "cart item not found")
	ErrOrderNotFound     = newError(ErrNotFound, "order not found")
	ErrPaymentNotFound   = newError(ErrNotFound, "payment not found")
	ErrUserNotFound      = newError(ErrNotFound, "user not found")
	ErrSessionNotFound   = newError(ErrNotFound, "session not found")
	ErrPriceNotFound     = newError(ErrNotFound, "price not found for category")
	ErrExcursionNotFound = newError(ErrNotFound, "excursion not found")

	ErrInvalidCredentials = newError(ErrUnauthorized, "invalid email or password")
	ErrInvalidToken       = newError(ErrUnauthorized, "invalid or expired token")
	ErrSessionInactive    = newError(ErrUnauthorized, "session is no longer active")
	ErrSessionExpired     = newError(ErrUnauthorized, "session expired")

	ErrMissingDigest = newError(ErrSignatureVerification, "DIGEST or DIGEST1 is missing in the response")
	ErrInvalidDigest = newError(ErrSignatureVerification, "invalid response signature")

	ErrUnsupportedPaymentMethod = newError(ErrInternalConfiguration, "unsupported payment method")
)
