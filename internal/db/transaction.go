package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn in a transaction that commits when fn returns nil
// and rolls back on error or panic
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	// GORM commits on a nil return and rolls back on error or panic
	if err := db.DB.WithContext(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("transaction error: %w", err)
	}
	return nil
}
