package services

import (
	"errors"
	"fmt"
)

var (
	// ErrCartInvalidInput signals a malformed cart.
	ErrCartInvalidInput = errors.New("cart: invalid input")

	// ErrOrderInvalidInput signals missing fields, a bad email, bad quantities or unknown products.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInsufficientStock indicates a line asked for more units than remain.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderInvalidState indicates a disallowed status transition.
	ErrOrderInvalidState = errors.New("order: invalid status transition")

	// ErrCatalogInvalidInput signals invalid product or category fields.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product or category does not exist.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogConflict indicates a uniqueness or reference conflict.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCatalogUploadTooLarge indicates an image above the configured size limit.
	ErrCatalogUploadTooLarge = errors.New("catalog: upload too large")
	// ErrCatalogStorageDisabled indicates uploads were attempted without an object store.
	ErrCatalogStorageDisabled = errors.New("catalog: image storage not configured")

	// ErrPaymentInvalidInput signals an empty or invalid cart for payment.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentUnavailable indicates the payment provider is not configured or failed.
	ErrPaymentUnavailable = errors.New("payment: provider unavailable")
)

// Error pairs a sentinel with the message shown to API clients.
type Error struct {
	Kind    error
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PublicMessage returns the client-facing message carried by err, or fallback.
func PublicMessage(err error, fallback string) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}

// PublicDetails returns structured details carried by err.
func PublicDetails(err error) map[string]any {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Details
	}
	return nil
}
