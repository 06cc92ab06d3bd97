package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/models"
	"github.com/stwalsh4118/glimpse/internal/store"
)

// MediaRequest describes the media of a new story
type MediaRequest struct {
	MimeType      string `json:"mime_type" binding:"required"`
	DurationLabel string `json:"duration_label"`
	DisplayWidth  int    `json:"display_width" binding:"gte=0"`
}

// CreateStoryRequest represents a request to publish a story
type CreateStoryRequest struct {
	SenderID  string        `json:"sender_id" binding:"required"`
	Kind      string        `json:"kind" binding:"required,oneof=media text"`
	Text      string        `json:"text"`
	Media     *MediaRequest `json:"media"`
	Receivers []string      `json:"receivers" binding:"dive,required"`
}

// StoryListResponse represents a list of stories
type StoryListResponse struct {
	Stories []models.StoryItem `json:"stories"`
}

// FeedResponse lists the senders a viewer can watch
type FeedResponse struct {
	ViewerID string            `json:"viewer_id"`
	Senders  []store.FeedEntry `json:"senders"`
}

type storyRepository interface {
	Create(ctx context.Context, story *models.StoryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type storyCollection interface {
	Snapshot() []models.StoryItem
	Add(item models.StoryItem) error
	Remove(id uuid.UUID) error
	Feed(viewerID string) []store.FeedEntry
}

// StoryHandler handles story publishing and listing
type StoryHandler struct {
	repo    storyRepository
	stories storyCollection
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(repo storyRepository, stories storyCollection) *StoryHandler {
	return &StoryHandler{repo: repo, stories: stories}
}

// ListStories handles GET /api/stories, optionally filtered by ?sender_id=
func (h *StoryHandler) ListStories(c *gin.Context) {
	items := h.stories.Snapshot()
	if sender := c.Query("sender_id"); sender != "" {
		items = lo.Filter(items, func(item models.StoryItem, _ int) bool {
			return item.SenderID == sender
		})
	}
	c.JSON(http.StatusOK, StoryListResponse{Stories: items})
}

// CreateStory handles POST /api/stories
func (h *StoryHandler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var story *models.StoryItem
	if models.StoryKind(req.Kind) == models.KindMedia {
		if req.Media == nil {
			respondError(c, models.ErrMissingMedia, "Failed to create story")
			return
		}
		story = models.NewMediaStory(req.SenderID, models.MediaDescriptor{
			MimeType:      req.Media.MimeType,
			DurationLabel: req.Media.DurationLabel,
			DisplayWidth:  req.Media.DisplayWidth,
		}, req.Receivers...)
		story.Text = req.Text
	} else {
		story = models.NewTextStory(req.SenderID, req.Text, req.Receivers...)
		if req.Media != nil {
			respondError(c, models.ErrUnexpectedMedia, "Failed to create story")
			return
		}
	}

	if err := story.Validate(); err != nil {
		respondError(c, err, "Failed to create story")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.Create(ctx, story); err != nil {
		respondError(c, err, "Failed to create story")
		return
	}
	if err := h.stories.Add(*story); err != nil {
		respondError(c, err, "Failed to publish story")
		return
	}

	logger.Log.Info().
		Str("story_id", story.ID.String()).
		Str("sender_id", story.SenderID).
		Int("receivers", len(story.Receivers)).
		Msg("Story published")

	c.JSON(http.StatusCreated, story)
}

// DeleteStory handles DELETE /api/stories/:id
func (h *StoryHandler) DeleteStory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid story ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.Delete(ctx, id); err != nil {
		respondError(c, err, "Failed to delete story")
		return
	}
	// Sessions playing the story observe its removal through the collection
	if err := h.stories.Remove(id); err != nil {
		respondError(c, err, "Failed to remove story")
		return
	}

	logger.Log.Info().
		Str("story_id", id.String()).
		Msg("Story deleted")

	c.Status(http.StatusNoContent)
}

// Feed handles GET /api/viewers/:viewer/feed
func (h *StoryHandler) Feed(c *gin.Context) {
	viewerID := c.Param("viewer")
	c.JSON(http.StatusOK, FeedResponse{
		ViewerID: viewerID,
		Senders:  h.stories.Feed(viewerID),
	})
}

// SetupStoryRoutes registers story routes
func SetupStoryRoutes(apiGroup *gin.RouterGroup, repo storyRepository, stories storyCollection) {
	handler := NewStoryHandler(repo, stories)

	storiesGroup := apiGroup.Group("/stories")
	{
		storiesGroup.GET("", handler.ListStories)
		storiesGroup.POST("", handler.CreateStory)
		storiesGroup.DELETE("/:id", handler.DeleteStory)
	}

	apiGroup.GET("/viewers/:viewer/feed", handler.Feed)
}
