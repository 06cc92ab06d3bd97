package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stwalsh4118/glimpse/internal/models"
)

func TestBuildContext(t *testing.T) {
	a1 := *models.NewTextStory("alice", "one", "bob", "carol")
	c1 := *models.NewTextStory("carol", "two", "bob")
	a2 := *models.NewTextStory("alice", "three", "carol")
	a3 := *models.NewTextStory("alice", "four", "bob")
	items := []models.StoryItem{a1, c1, a2, a3}

	tests := []struct {
		name   string
		sender string
		viewer string
		want   []models.StoryItem
	}{
		{"receiver sees own subset in order", "alice", "bob", []models.StoryItem{a1, a3}},
		{"sender sees everything", "alice", "alice", []models.StoryItem{a1, a2, a3}},
		{"other sender", "carol", "bob", []models.StoryItem{c1}},
		{"stranger sees nothing", "alice", "mallory", []models.StoryItem{}},
		{"unknown sender", "dave", "bob", []models.StoryItem{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildContext(items, tt.sender, tt.viewer)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Len(t, items, 4, "input must not be modified")
}
