package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// StockLotRepository puerto del ledger de stock por lote.
//
// Debit y Credit son updates condicionales atómicos sobre la fila del lote
// (nunca read-then-write): Debit falla con domain.ErrInsufficientStock si la
// cantidad disponible es menor a la solicitada en el instante del débito.
// El lote puede estar siendo consumido a la vez por ventas u otros
// intercambios; la atomicidad por fila es la única disciplina compartida.
type StockLotRepository interface {
	Create(ctx context.Context, lot *entity.StockLot) error
	GetByID(ctx context.Context, id string) (*entity.StockLot, error)
	Debit(ctx context.Context, lotID string, quantity int64) error
	Credit(ctx context.Context, lotID string, quantity int64) error
	Search(ctx context.Context, establishmentID, query string, limit, offset int) ([]*entity.StockLot, error)
}
