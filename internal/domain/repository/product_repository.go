package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// ProductRepository puerto de persistencia para Product.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	GetByCode(ctx context.Context, establishmentID, code string) (*entity.Product, error)
	Search(ctx context.Context, establishmentID, query string, limit, offset int) ([]*entity.Product, error)
}
