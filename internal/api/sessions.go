package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/playback"
	"github.com/stwalsh4118/glimpse/internal/viewer"
)

// OpenSessionRequest starts viewing a sender's stories
type OpenSessionRequest struct {
	SenderID   string `json:"sender_id" binding:"required"`
	StartIndex int    `json:"start_index" binding:"gte=0"`
}

// SelectRequest jumps to an item of the viewing context
type SelectRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SeekRequest moves the active item to a percentage
type SeekRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// VisibilityRequest reports page visibility
type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// BusyRequest reports an exclusive activity such as voice recording
type BusyRequest struct {
	Busy *bool `json:"busy" binding:"required"`
}

// MediaReportRequest carries a client's media playback position
type MediaReportRequest struct {
	ItemID     string `json:"item_id" binding:"required"`
	CurrentMS  int64  `json:"current_ms" binding:"gte=0"`
	DurationMS int64  `json:"duration_ms" binding:"gte=0"`
}

// MediaReportResponse tells the client how to drive its media element
type MediaReportResponse struct {
	viewer.MediaState
	Session playback.SessionView `json:"session"`
}

type sessionManager interface {
	Open(viewerID, senderID string, startIndex int) (playback.SessionView, error)
	Session(viewerID string) (*playback.Session, error)
	Close(viewerID string) error
	ReportMedia(viewerID string, itemID uuid.UUID, current, duration time.Duration) (viewer.MediaState, error)
}

// SessionHandler exposes viewing sessions over HTTP
type SessionHandler struct {
	sessions sessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions sessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// OpenSession handles POST /api/viewers/:viewer/session
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.sessions.Open(c.Param("viewer"), req.SenderID, req.StartIndex)
	if err != nil {
		respondError(c, err, "Failed to open viewing session")
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSession handles GET /api/viewers/:viewer/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.withSession(c, func(*playback.Session) error { return nil })
}

// CloseSession handles DELETE /api/viewers/:viewer/session
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("viewer")); err != nil {
		respondError(c, err, "Failed to close viewing session")
		return
	}
	c.Status(http.StatusNoContent)
}

// Select handles POST /api/viewers/:viewer/session/select
func (h *SessionHandler) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.withSession(c, func(s *playback.Session) error {
		return s.Select(*req.Index)
	})
}

// Next handles POST /api/viewers/:viewer/session/next
func (h *SessionHandler) Next(c *gin.Context) {
	h.withSession(c, (*playback.Session).Advance)
}

// Previous handles POST /api/viewers/:viewer/session/previous
func (h *SessionHandler) Previous(c *gin.Context) {
	h.withSession(c, (*playback.Session).Previous)
}

// Pause handles POST /api/viewers/:viewer/session/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	h.withSession(c, func(s *playback.Session) error {
		s.Pause()
		return nil
	})
}

// Resume handles POST /api/viewers/:viewer/session/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	h.withSession(c, func(s *playback.Session) error {
		s.Resume()
		return nil
	})
}

// Seek handles POST /api/viewers/:viewer/session/seek
func (h *SessionHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.withSession(c, func(s *playback.Session) error {
		return s.Seek(*req.Value)
	})
}

// Visibility handles POST /api/viewers/:viewer/session/visibility
func (h *SessionHandler) Visibility(c *gin.Context) {
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.withSession(c, func(s *playback.Session) error {
		s.SetVisible(*req.Visible)
		return nil
	})
}

// Busy handles POST /api/viewers/:viewer/session/busy
func (h *SessionHandler) Busy(c *gin.Context) {
	var req BusyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.withSession(c, func(s *playback.Session) error {
		s.SetBusy(*req.Busy)
		return nil
	})
}

// ReportMedia handles POST /api/viewers/:viewer/session/media
func (h *SessionHandler) ReportMedia(c *gin.Context) {
	var req MediaReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid story ID format",
		})
		return
	}

	viewerID := c.Param("viewer")
	state, err := h.sessions.ReportMedia(viewerID, itemID,
		time.Duration(req.CurrentMS)*time.Millisecond,
		time.Duration(req.DurationMS)*time.Millisecond)
	if err != nil {
		respondError(c, err, "Failed to report media position")
		return
	}

	session, err := h.sessions.Session(viewerID)
	if err != nil {
		respondError(c, err, "Failed to report media position")
		return
	}
	c.JSON(http.StatusOK, MediaReportResponse{MediaState: state, Session: session.View()})
}

// withSession runs op on the viewer's session and responds with its view
func (h *SessionHandler) withSession(c *gin.Context, op func(*playback.Session) error) {
	viewerID := c.Param("viewer")
	session, err := h.sessions.Session(viewerID)
	if err != nil {
		respondError(c, err, "Failed to load viewing session")
		return
	}
	if err := op(session); err != nil {
		logger.Log.Debug().
			Err(err).
			Str("viewer_id", viewerID).
			Str("path", c.FullPath()).
			Msg("Session operation rejected")
		respondError(c, err, "Session operation failed")
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// SetupSessionRoutes registers viewing session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, sessions sessionManager) {
	handler := NewSessionHandler(sessions)

	session := apiGroup.Group("/viewers/:viewer/session")
	{
		session.POST("", handler.OpenSession)
		session.GET("", handler.GetSession)
		session.DELETE("", handler.CloseSession)
		session.POST("/select", handler.Select)
		session.POST("/next", handler.Next)
		session.POST("/previous", handler.Previous)
		session.POST("/pause", handler.Pause)
		session.POST("/resume", handler.Resume)
		session.POST("/seek", handler.Seek)
		session.POST("/visibility", handler.Visibility)
		session.POST("/busy", handler.Busy)
		session.POST("/media", handler.ReportMedia)
	}
}
