package exchange

import (
	"context"
	"time"

	"github.com/dfarias/farmacia-api/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción de BD.
type TxRepos struct {
	Exchanges repository.ExchangeRepository
	Lots      repository.StockLotRepository
	Movements repository.StockMovementRepository
	Payments  repository.ExchangePaymentRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Garantiza que el cambio de estado y sus
// efectos sobre los ledgers se confirman o se revierten como una unidad:
// nunca se persiste una aplicación parcial.
type TxRunner interface {
	Run(ctx context.Context, fn func(r TxRepos) error) error
}

// IdempotencyStore marca claves de acción ya procesadas (SETNX + TTL).
// MarkProcessed devuelve true si la clave es nueva; false si la acción ya fue
// aplicada con esa misma clave (un reintento del cliente tras un corte).
type IdempotencyStore interface {
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
