package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// UserRepository puerto de persistencia para User.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByEmailAndEstablishment(ctx context.Context, email, establishmentID string) (*entity.User, error)
}
