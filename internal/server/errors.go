package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/keys"
	"github.com/MarcoPoloResearchLab/miraiwall/backend/internal/tiles"
	"github.com/gin-gonic/gin"
)

const (
	codeInvalidRequest = "invalid_request"
	codeInternalError  = "internal_error"
	codeUnauthorized   = "unauthorized"

	messageInvalidRequest = "Invalid request body"
	messageInternalError  = "Internal server error"
)

type errorKind struct {
	target  error
	status  int
	code    string
	message string
}

// errorKinds is checked in order; store failures come first so a wrapped cause never masks them.
var errorKinds = []errorKind{
	{target: tiles.ErrStoreUnavailable, status: http.StatusInternalServerError, code: codeInternalError, message: messageInternalError},
	{target: tiles.ErrMissingFields, status: http.StatusBadRequest, code: "missing_fields", message: "Missing required fields"},
	{target: tiles.ErrInvalidFormat, status: http.StatusBadRequest, code: "invalid_format", message: "Invalid key format. Use: " + keys.FormatHint},
	{target: tiles.ErrInvalidCoordinates, status: http.StatusBadRequest, code: "invalid_coordinates", message: "Invalid tile coordinates"},
	{target: tiles.ErrAlreadyRedeemed, status: http.StatusBadRequest, code: "already_redeemed", message: "This license key has already been used"},
	{target: tiles.ErrInvalidKey, status: http.StatusBadRequest, code: "invalid_key", message: "Invalid license key"},
	{target: tiles.ErrTileTaken, status: http.StatusConflict, code: "tile_taken", message: "This tile has already been claimed"},
	{target: tiles.ErrTileNotFound, status: http.StatusNotFound, code: "tile_not_found", message: "Tile not found"},
	{target: tiles.ErrCapsuleExists, status: http.StatusConflict, code: "capsule_exists", message: "This tile already holds a time capsule"},
	{target: tiles.ErrCapsuleNotFound, status: http.StatusNotFound, code: "capsule_not_found", message: "No time capsule on this tile"},
	{target: tiles.ErrInvalidCapsule, status: http.StatusBadRequest, code: "invalid_capsule", message: "Invalid time capsule"},
	{target: tiles.ErrUnlockTooSoon, status: http.StatusBadRequest, code: "unlock_too_soon", message: "Unlock time is too soon"},
	{target: keys.ErrInvalidCount, status: http.StatusBadRequest, code: "invalid_count", message: "Invalid key count"},
}

func classifyError(err error) errorKind {
	for _, kind := range errorKinds {
		if errors.Is(err, kind.target) {
			return kind
		}
	}
	return errorKind{status: http.StatusInternalServerError, code: codeInternalError, message: messageInternalError}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

func respondServiceError(c *gin.Context, err error) errorKind {
	kind := classifyError(err)
	respondError(c, kind.status, kind.code, kind.message)
	return kind
}
