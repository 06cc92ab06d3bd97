package playback

import (
	"github.com/samber/lo"
	"github.com/stwalsh4118/glimpse/internal/models"
)

// BuildContext projects the collection onto one sender's items visible to
// viewerID, in collection order. It never modifies items.
func BuildContext(items []models.StoryItem, senderID, viewerID string) []models.StoryItem {
	return lo.Filter(items, func(item models.StoryItem, _ int) bool {
		return item.SenderID == senderID && item.VisibleTo(viewerID)
	})
}
