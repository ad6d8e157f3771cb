package database

import (
	"context"

	"github.com/benvon/health-chat/internal/knowledge"
	"github.com/benvon/health-chat/internal/models"
	"github.com/benvon/health-chat/internal/records"
	"github.com/google/uuid"
)

// UserRepositoryInterface defines the user operations the auth middleware depends on
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SyncFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// KnowledgeStore is a knowledge.Lookup that can also be seeded
type KnowledgeStore interface {
	knowledge.Lookup
	Upsert(ctx context.Context, fact knowledge.Fact) error
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface = (*UserRepository)(nil)
	_ records.Accessor        = (*RecordRepository)(nil)
	_ KnowledgeStore          = (*KnowledgeRepository)(nil)
)
