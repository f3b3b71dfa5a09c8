package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/secatt/adapters/auth"
	"github.com/layer-3/secatt/adapters/identity"
	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/service"
)

// AttendanceHandlers contains HTTP handlers for attendance endpoints
type AttendanceHandlers struct {
	attendance   *service.AttendanceService
	bindLocation bool
}

// NewAttendanceHandlers creates new attendance handlers
func NewAttendanceHandlers(attendance *service.AttendanceService, bindLocation bool) *AttendanceHandlers {
	return &AttendanceHandlers{
		attendance:   attendance,
		bindLocation: bindLocation,
	}
}

type sessionResponse struct {
	SessionID    string    `json:"session_id"`
	IssuerID     string    `json:"issuer_id"`
	Subject      string    `json:"subject"`
	SessionKind  string    `json:"session_kind"`
	ScannedCount int       `json:"scanned_count"`
	IsOpen       bool      `json:"is_open"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func toSessionResponse(s core.Snapshot) sessionResponse {
	return sessionResponse{
		SessionID:    s.SessionID,
		IssuerID:     s.IssuerID,
		Subject:      s.SubjectLabel,
		SessionKind:  string(s.SessionKind),
		ScannedCount: s.ScannedCount,
		IsOpen:       s.IsOpen,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

// OpenSession handles a faculty request for a new QR session
func (h *AttendanceHandlers) OpenSession(c *gin.Context) {
	var req struct {
		Subject         string `json:"subject" binding:"required"`
		SessionKind     string `json:"session_kind"`
		DurationMinutes int    `json:"duration_minutes"`
		Location        string `json:"location"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": core.Kind(core.ErrInvalidInput)})
		return
	}

	if req.SessionKind == "" {
		req.SessionKind = string(core.SessionKindLecture)
	}
	kind, err := core.ParseSessionKind(req.SessionKind)
	if err != nil {
		writeError(c, err)
		return
	}

	issued, err := h.attendance.OpenSession(c.Request.Context(), core.IssueRequest{
		IssuerID:            principalFrom(c).UserID,
		SubjectLabel:        req.Subject,
		SessionKind:         kind,
		LocationFingerprint: locationFingerprint(req.Location, c.ClientIP(), h.bindLocation),
		Duration:            time.Duration(req.DurationMinutes) * time.Minute,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"payload":      issued.Payload,
		"session_id":   issued.SessionID,
		"expires_at":   issued.ExpiresAt,
		"subject":      req.Subject,
		"session_kind": kind,
	})
}

// ListSessions returns the caller's open sessions; admins see every session
func (h *AttendanceHandlers) ListSessions(c *gin.Context) {
	p := principalFrom(c)

	issuer := p.UserID
	if p.Role == auth.RoleAdmin {
		issuer = ""
	}

	snaps := h.attendance.ActiveSessions(issuer)
	out := make([]sessionResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSessionResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// GetSession returns a live snapshot for dashboard polling
func (h *AttendanceHandlers) GetSession(c *gin.Context) {
	snap, err := h.attendance.Snapshot(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	p := principalFrom(c)
	if p.Role != auth.RoleAdmin && snap.IssuerID != p.UserID {
		writeError(c, core.ErrNotAuthorized)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(snap))
}

// SessionAttendance returns the recorded students of a session
func (h *AttendanceHandlers) SessionAttendance(c *gin.Context) {
	sa, err := h.attendance.SessionAttendance(c.Request.Context(), c.Param("id"), principalFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toSessionResponse(sa.Snapshot),
		"records": sa.Records,
	})
}

// CloseSession ends a session
func (h *AttendanceHandlers) CloseSession(c *gin.Context) {
	snap, err := h.attendance.EndSession(c.Request.Context(), c.Param("id"), principalFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(snap))
}

// Scan handles a student scanning a session QR code
func (h *AttendanceHandlers) Scan(c *gin.Context) {
	var req struct {
		Payload  string `json:"payload" binding:"required"`
		Location string `json:"location"`
		RFIDUID  string `json:"rfid_uid"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "QR code data not provided", "code": core.Kind(core.ErrInvalidInput)})
		return
	}

	var cred *core.Credential
	if req.RFIDUID != "" {
		cred = &core.Credential{Method: identity.MethodRFID, Value: req.RFIDUID}
	}

	rec, total, err := h.attendance.MarkAttendance(c.Request.Context(), service.MarkRequest{
		Payload:             req.Payload,
		StudentID:           principalFrom(c).UserID,
		ClientFingerprint:   c.ClientIP(),
		LocationFingerprint: locationFingerprint(req.Location, c.ClientIP(), h.bindLocation),
		Credential:          cred,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Attendance marked successfully for " + rec.SubjectLabel,
		"session_id":    rec.SessionID,
		"subject":       rec.SubjectLabel,
		"session_kind":  rec.SessionKind,
		"method":        rec.Method,
		"marked_at":     rec.MarkedAt,
		"total_scanned": total,
	})
}

// Health reports liveness
func (h *AttendanceHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
