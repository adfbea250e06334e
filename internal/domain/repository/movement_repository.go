package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// StockMovementRepository puerto del diario de movimientos de stock.
type StockMovementRepository interface {
	Create(ctx context.Context, mov *entity.StockMovement) error
	// ListByTransaction devuelve los movimientos de un intercambio (por su
	// referencia), para conciliar débitos contra restauraciones.
	ListByTransaction(ctx context.Context, transactionID string) ([]*entity.StockMovement, error)
}
