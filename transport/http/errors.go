package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/wallet2fa/core"
)

const (
	msgVerifyFailed   = "Invalid signature or expired nonce"
	msgUnauthorized   = "Unauthorized"
	msgUnavailable    = "Service temporarily unavailable"
	msgInternal       = "Internal server error"
	msgInvalidRequest = "Invalid request body"
)

// statusFor maps a service error to its HTTP status and client-facing message.
// Internal reasons never leave this function.
func statusFor(err error) (int, string) {
	var validation *core.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, core.ErrMalformedChallenge),
		errors.Is(err, core.ErrInvalidChallenge),
		errors.Is(err, core.ErrInvalidSignature),
		errors.Is(err, core.ErrInvalidOrExpiredNonce):
		return http.StatusUnauthorized, msgVerifyFailed
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, core.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	c.JSON(status, gin.H{"error": msg})
}

// writeVerifyError uses the sign-in response shape, where verification
// failures carry a message instead of an error
func writeVerifyError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusUnauthorized {
		c.JSON(status, gin.H{"success": false, "message": msg})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}
