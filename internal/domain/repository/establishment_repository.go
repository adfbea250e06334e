package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// EstablishmentRepository puerto del directorio de establecimientos.
type EstablishmentRepository interface {
	Create(ctx context.Context, est *entity.Establishment) error
	GetByID(ctx context.Context, id string) (*entity.Establishment, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*entity.Establishment, error)
}
