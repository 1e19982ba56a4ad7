package repository

import (
	"context"

	"goride/internal/domain"
)

// UserRepository reads accounts owned by the identity provider.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
