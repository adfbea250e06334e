package repository

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// ExchangePaymentRepository puerto del historial de liquidación.
type ExchangePaymentRepository interface {
	Create(ctx context.Context, payment *entity.ExchangePayment) error
	ListByExchange(ctx context.Context, exchangeID string) ([]*entity.ExchangePayment, error)
}
