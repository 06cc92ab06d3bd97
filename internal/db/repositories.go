package db

// Repositories provides access to all database repositories
type Repositories struct {
	Stories *StoryRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Stories: NewStoryRepository(db),
	}
}
