// Package store holds the in-memory story collection shared by viewing sessions.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stwalsh4118/glimpse/internal/logger"
	"github.com/stwalsh4118/glimpse/internal/models"
)

// Loader reads the persisted collection
type Loader interface {
	ListAll(ctx context.Context) ([]models.StoryItem, error)
}

// FeedEntry summarizes one sender's stories for a viewer
type FeedEntry struct {
	SenderID string    `json:"sender_id"`
	Total    int       `json:"total"`
	Unseen   int       `json:"unseen"`
	LatestAt time.Time `json:"latest_at"`
}

// Collection is an ordered story collection with copy-on-write updates.
// Readers get deep copies; every Update replaces the whole collection and
// bumps the version. Subscribers run after the lock is released.
type Collection struct {
	mu      sync.RWMutex
	items   []models.StoryItem
	version uint64
	subs    map[int]func()
	nextSub int
}

// NewCollection creates a collection seeded with items
func NewCollection(items ...models.StoryItem) *Collection {
	return &Collection{
		items: cloneAll(items),
		subs:  make(map[int]func()),
	}
}

// Snapshot returns a private copy of the collection in order
func (c *Collection) Snapshot() []models.StoryItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAll(c.items)
}

// Version returns the number of replacements made so far
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Len returns the number of stories
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Update passes a working copy of the collection to fn and installs the
// result as the new collection
func (c *Collection) Update(fn func(items []models.StoryItem) []models.StoryItem) uint64 {
	c.mu.Lock()
	next := fn(cloneAll(c.items))
	c.items = next
	c.version++
	version := c.version
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
	return version
}

// Subscribe registers fn to run after every replacement
func (c *Collection) Subscribe(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
		})
	}
}

// Subscribers returns the number of registered subscribers
func (c *Collection) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func (c *Collection) subscribers() []func() {
	ids := lo.Keys(c.subs)
	sort.Ints(ids)
	return lo.Map(ids, func(id int, _ int) func() { return c.subs[id] })
}

// Load replaces the collection with the persisted stories
func (c *Collection) Load(ctx context.Context, loader Loader) error {
	items, err := loader.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stories: %w", err)
	}
	c.Update(func([]models.StoryItem) []models.StoryItem {
		return items
	})

	logger.Log.Info().
		Int("stories", len(items)).
		Msg("Story collection loaded")
	return nil
}

// Get returns a copy of the story with the given ID
func (c *Collection) Get(id uuid.UUID) (models.StoryItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := lo.Find(c.items, func(item models.StoryItem) bool { return item.ID == id })
	if !ok {
		return models.StoryItem{}, fmt.Errorf("%w: %s", ErrStoryNotFound, id)
	}
	return item.Clone(), nil
}

// Add appends a validated story
func (c *Collection) Add(item models.StoryItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	var err error
	c.Update(func(items []models.StoryItem) []models.StoryItem {
		if lo.ContainsBy(items, func(existing models.StoryItem) bool { return existing.ID == item.ID }) {
			err = fmt.Errorf("%w: %s", ErrDuplicateStory, item.ID)
			return items
		}
		return append(items, item.Clone())
	})
	return err
}

// Remove deletes a story
func (c *Collection) Remove(id uuid.UUID) error {
	var err error
	c.Update(func(items []models.StoryItem) []models.StoryItem {
		kept := lo.Reject(items, func(item models.StoryItem, _ int) bool { return item.ID == id })
		if len(kept) == len(items) {
			err = fmt.Errorf("%w: %s", ErrStoryNotFound, id)
		}
		return kept
	})
	return err
}

// MarkSeen records that viewerID saw a story. It reports whether the
// receipt was new.
func (c *Collection) MarkSeen(id uuid.UUID, viewerID string, at time.Time) (bool, error) {
	var (
		changed bool
		err     error
	)
	c.Update(func(items []models.StoryItem) []models.StoryItem {
		_, idx, ok := lo.FindIndexOf(items, func(item models.StoryItem) bool { return item.ID == id })
		if !ok {
			err = fmt.Errorf("%w: %s", ErrStoryNotFound, id)
			return items
		}
		changed = items[idx].MarkSeen(viewerID, at)
		return items
	})
	return changed, err
}

// Feed lists the senders with stories visible to viewerID, most recent first
func (c *Collection) Feed(viewerID string) []FeedEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make(map[string]*FeedEntry)
	var order []string
	for _, item := range c.items {
		if !item.VisibleTo(viewerID) {
			continue
		}
		entry, ok := entries[item.SenderID]
		if !ok {
			entry = &FeedEntry{SenderID: item.SenderID}
			entries[item.SenderID] = entry
			order = append(order, item.SenderID)
		}
		entry.Total++
		if item.SenderID != viewerID && !item.SeenBy(viewerID) {
			entry.Unseen++
		}
		if item.SentAt.After(entry.LatestAt) {
			entry.LatestAt = item.SentAt
		}
	}

	feed := lo.Map(order, func(sender string, _ int) FeedEntry { return *entries[sender] })
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].LatestAt.After(feed[j].LatestAt)
	})
	return feed
}

func cloneAll(items []models.StoryItem) []models.StoryItem {
	out := make([]models.StoryItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}
