package backend

import (
	"context"

	"smartplates/internal/store"
)

// Backend is the full set of persistence ports served by one adapter.
type Backend interface {
	store.MealPlanStore
	store.GroceryListStore
	store.EditorialRecipeReader
	store.UserRecipeReader
	store.RecipeWriter
}

// Publisher announces meal plan edits. It is nil when AMQP is not configured.
type Publisher interface {
	PublishMealPlanChanged(ctx context.Context, planID, userID, reason string) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend   Backend
	Publisher Publisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend seed directory
	DataDirectory string

	// AMQP is optional for either backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
