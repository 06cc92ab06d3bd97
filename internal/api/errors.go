package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/glimpse/internal/db"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/playback"
	"github.com/stwalsh4118/glimpse/internal/store"
	"github.com/stwalsh4118/glimpse/internal/viewer"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{viewer.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{viewer.ErrElementNotFound, http.StatusNotFound, "element_not_found"},
	{store.ErrStoryNotFound, http.StatusNotFound, "story_not_found"},
	{db.ErrNotFound, http.StatusNotFound, "story_not_found"},
	{store.ErrDuplicateStory, http.StatusConflict, "duplicate_story"},
	{db.ErrDuplicate, http.StatusConflict, "duplicate_story"},
	{playback.ErrNoContext, http.StatusConflict, "no_context"},
	{playback.ErrSessionExited, http.StatusConflict, "session_exited"},
	{playback.ErrIndexOutOfRange, http.StatusBadRequest, "index_out_of_range"},
	{models.ErrInvalidKind, http.StatusBadRequest, "invalid_story"},
	{models.ErrMissingMedia, http.StatusBadRequest, "invalid_story"},
	{models.ErrUnexpectedMedia, http.StatusBadRequest, "invalid_story"},
	{models.ErrMissingMimeType, http.StatusBadRequest, "invalid_story"},
	{models.ErrMissingSender, http.StatusBadRequest, "invalid_story"},
	{models.ErrDuplicateReceiver, http.StatusBadRequest, "invalid_story"},
}

// respondError writes the response for a domain error, logging unexpected ones
func respondError(c *gin.Context, err error, msg string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, ErrorResponse{Error: m.code, Message: err.Error()})
			return
		}
	}

	logger.Log.Error().
		Err(err).
		Str("path", c.Request.URL.Path).
		Msg(msg)

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: msg,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body: " + err.Error(),
	})
}
