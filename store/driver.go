package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// ConversationContext model related methods.
	UpsertConversationContext(ctx context.Context, upsert *ConversationContext) (*ConversationContext, error)
	GetConversationContext(ctx context.Context, find *FindConversationContext) (*ConversationContext, error)
	DeleteConversationContext(ctx context.Context, delete *DeleteConversationContext) (int64, error)

	// SystemSetting model related methods.
	UpsertSystemSetting(ctx context.Context, upsert *SystemSetting) (*SystemSetting, error)
	GetSystemSetting(ctx context.Context, find *FindSystemSetting) (*SystemSetting, error)
}
