package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// ExchangeFilter filtros para el listado paginado de intercambios.
// Received=true lista los intercambios iniciados por colegas en los que
// participa EstablishmentID (pendientes de mi acción); false lista los míos.
type ExchangeFilter struct {
	EstablishmentID string
	Search          string // contra reference y reason (ILIKE)
	Status          entity.ExchangeStatus
	Direction       entity.ExchangeDirection
	Received        bool
	Limit           int
	Offset          int
}

// ExchangeRepository puerto de persistencia del agregado Exchange.
// GetByID carga el agregado completo (cabecera + líneas). Update persiste la
// cabecera con control optimista: si la versión en BD no coincide con
// entity.Exchange.Version devuelve domain.ErrConcurrencyConflict sin escribir.
type ExchangeRepository interface {
	Create(ctx context.Context, ex *entity.Exchange) error
	GetByID(ctx context.Context, id string) (*entity.Exchange, error)
	GetByReference(ctx context.Context, reference string) (*entity.Exchange, error)
	Update(ctx context.Context, ex *entity.Exchange) error
	ReplaceLines(ctx context.Context, exchangeID string, lines []entity.ExchangeLine) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ExchangeFilter) ([]*entity.Exchange, int, error)
	// NextReference incrementa el contador anual y devuelve el consecutivo.
	// El contador nunca retrocede: una referencia emitida no se reutiliza
	// aunque el borrador se elimine.
	NextReference(ctx context.Context, year int) (int64, error)
}
