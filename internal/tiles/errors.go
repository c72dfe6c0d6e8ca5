package tiles

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFields indicates the key or a coordinate was not supplied.
	ErrMissingFields = errors.New("tiles: missing required fields")
	// ErrInvalidFormat indicates the key does not match XXXXX-XXXXX-XXXXX-XXXXX.
	ErrInvalidFormat = errors.New("tiles: invalid key format")
	// ErrInvalidCoordinates indicates a negative page or a position outside the page.
	ErrInvalidCoordinates = errors.New("tiles: invalid coordinates")
	// ErrAlreadyRedeemed indicates the persisted key was consumed by an earlier claim.
	ErrAlreadyRedeemed = errors.New("tiles: license key already redeemed")
	// ErrInvalidKey indicates the key is neither stored nor a demo key.
	ErrInvalidKey = errors.New("tiles: invalid license key")
	// ErrTileTaken indicates another claim already owns the coordinates.
	ErrTileTaken = errors.New("tiles: tile already claimed")
	// ErrStoreUnavailable wraps unexpected persistence failures.
	ErrStoreUnavailable = errors.New("tiles: store unavailable")
	// ErrTileNotFound indicates no persisted tile exists at the coordinates.
	ErrTileNotFound = errors.New("tiles: tile not found")
	// ErrCapsuleExists indicates the tile already holds a time capsule.
	ErrCapsuleExists = errors.New("tiles: time capsule already sealed")
	// ErrCapsuleNotFound indicates the tile holds no time capsule.
	ErrCapsuleNotFound = errors.New("tiles: time capsule not found")
	// ErrInvalidCapsule indicates unusable capsule content.
	ErrInvalidCapsule = errors.New("tiles: invalid time capsule")
	// ErrUnlockTooSoon indicates the unlock time is earlier than the minimum lead allows.
	ErrUnlockTooSoon = errors.New("tiles: unlock time too soon")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingContent    = errors.New("content generator is required")
)

// ServiceError carries an operation scoped code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the "operation.reason" identifier.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func storeFailure(cause error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, cause)
}
