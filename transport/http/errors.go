package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/secatt/core"
)

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{core.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
	{core.ErrMalformedToken, http.StatusBadRequest, "Invalid QR code format"},
	{core.ErrTamperedOrInvalidToken, http.StatusBadRequest, "Invalid or corrupted QR code"},
	{core.ErrSessionNotFound, http.StatusNotFound, "Session not found"},
	{core.ErrSessionClosed, http.StatusGone, "Session has been ended"},
	{core.ErrTokenExpired, http.StatusGone, "QR code has expired"},
	{core.ErrAlreadyScanned, http.StatusConflict, "You have already scanned this QR code"},
	{core.ErrAttendanceExists, http.StatusConflict, "Attendance already marked for this session"},
	{core.ErrLocationMismatch, http.StatusForbidden, "Location verification failed"},
	{core.ErrNotAuthorized, http.StatusForbidden, "Not allowed"},
	{core.ErrIdentityRejected, http.StatusUnauthorized, "Identity verification failed"},
}

// writeError maps a service error to a status code and JSON body
func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.message, "code": core.Kind(err)})
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": core.Kind(err)})
}
