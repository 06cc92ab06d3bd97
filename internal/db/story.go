package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/glimpse/internal/models"
	"gorm.io/gorm"
)

// storyRow is the persisted form of a models.StoryItem
type storyRow struct {
	ID            string `gorm:"primaryKey"`
	SenderID      string
	Kind          string
	MimeType      *string
	DurationLabel *string
	DisplayWidth  *int
	Text          string
	SentAt        time.Time
	Failed        bool
	SendStatus    string
	Receivers     []receiverRow `gorm:"foreignKey:StoryID;references:ID"`
}

func (storyRow) TableName() string { return "stories" }

// receiverRow is one receiver of a story together with its seen receipt
type receiverRow struct {
	StoryID               string `gorm:"primaryKey"`
	ReceiverID            string `gorm:"primaryKey"`
	Position              int
	SeenAt                *time.Time
	SeenVisibilityAllowed bool
}

func (receiverRow) TableName() string { return "story_receivers" }

// StoryRepository handles database operations for stories and seen receipts
type StoryRepository struct {
	db *DB
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// Create inserts a story and its receivers
func (r *StoryRepository) Create(ctx context.Context, story *models.StoryItem) error {
	row := toStoryRow(story)
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit("Receivers").Create(&row).Error; err != nil {
			return MapGormError(err)
		}
		if len(row.Receivers) == 0 {
			return nil
		}
		return MapGormError(tx.Create(&row.Receivers).Error)
	})
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetByID retrieves a story by its UUID
func (r *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryItem, error) {
	var row storyRow
	result := r.db.WithContext(ctx).
		Preload("Receivers", orderByPosition).
		Where("id = ?", id.String()).
		First(&row)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	story, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// ListAll retrieves every story in insertion order
func (r *StoryRepository) ListAll(ctx context.Context) ([]models.StoryItem, error) {
	var rows []storyRow
	result := r.db.WithContext(ctx).
		Preload("Receivers", orderByPosition).
		Order("rowid ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list stories: %w", MapGormError(result.Error))
	}

	stories := make([]models.StoryItem, 0, len(rows))
	for _, row := range rows {
		story, err := row.toModel()
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// Delete removes a story and its receipts
func (r *StoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", id.String()).Delete(&receiverRow{}).Error; err != nil {
			return MapGormError(err)
		}
		result := tx.Where("id = ?", id.String()).Delete(&storyRow{})
		if result.Error != nil {
			return MapGormError(result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return nil
}

// MarkSeen stores the first seen receipt of viewerID on a story.
// It reports whether a receipt was written; an existing receipt is kept.
func (r *StoryRepository) MarkSeen(ctx context.Context, storyID uuid.UUID, viewerID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&receiverRow{}).
		Where("story_id = ? AND receiver_id = ? AND seen_at IS NULL", storyID.String(), viewerID).
		Update("seen_at", at.UTC())
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark story seen: %w", MapGormError(result.Error))
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&receiverRow{}).
		Where("story_id = ? AND receiver_id = ?", storyID.String(), viewerID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check receiver: %w", MapGormError(err))
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func toStoryRow(story *models.StoryItem) storyRow {
	row := storyRow{
		ID:         story.ID.String(),
		SenderID:   story.SenderID,
		Kind:       string(story.Kind),
		Text:       story.Text,
		SentAt:     story.SentAt.UTC(),
		Failed:     story.Failed,
		SendStatus: string(story.SendStatus),
	}
	if story.Media != nil {
		row.MimeType = lo.ToPtr(story.Media.MimeType)
		row.DurationLabel = lo.ToPtr(story.Media.DurationLabel)
		row.DisplayWidth = lo.ToPtr(story.Media.DisplayWidth)
	}
	row.Receivers = lo.Map(story.Receivers, func(r models.Receiver, i int) receiverRow {
		return receiverRow{
			StoryID:               row.ID,
			ReceiverID:            r.ReceiverID,
			Position:              i,
			SeenAt:                r.SeenAt,
			SeenVisibilityAllowed: r.SeenVisibilityAllowed,
		}
	})
	return row
}

func (row storyRow) toModel() (models.StoryItem, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return models.StoryItem{}, fmt.Errorf("invalid story id %q: %w", row.ID, err)
	}

	story := models.StoryItem{
		ID:         id,
		SenderID:   row.SenderID,
		Kind:       models.StoryKind(row.Kind),
		Text:       row.Text,
		SentAt:     row.SentAt.UTC(),
		Failed:     row.Failed,
		SendStatus: models.SendStatus(row.SendStatus),
	}
	if row.MimeType != nil {
		story.Media = &models.MediaDescriptor{
			MimeType:      *row.MimeType,
			DurationLabel: lo.FromPtr(row.DurationLabel),
			DisplayWidth:  lo.FromPtr(row.DisplayWidth),
		}
	}
	story.Receivers = lo.Map(row.Receivers, func(r receiverRow, _ int) models.Receiver {
		receiver := models.Receiver{
			ReceiverID:            r.ReceiverID,
			SeenVisibilityAllowed: r.SeenVisibilityAllowed,
		}
		if r.SeenAt != nil {
			seen := r.SeenAt.UTC()
			receiver.SeenAt = &seen
		}
		return receiver
	})
	return story, nil
}
