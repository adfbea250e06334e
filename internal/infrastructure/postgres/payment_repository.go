package postgres

import (
	"context"
	"fmt"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
)

var _ repository.ExchangePaymentRepository = (*ExchangePaymentRepo)(nil)

// ExchangePaymentRepo implementación de ExchangePaymentRepository sobre PostgreSQL.
// Append-only: cada confirmación parcial de pago es una fila.
type ExchangePaymentRepo struct {
	q Querier
}

// NewExchangePaymentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewExchangePaymentRepository(q Querier) *ExchangePaymentRepo {
	return &ExchangePaymentRepo{q: q}
}

// Create inserta una confirmación de pago.
func (r *ExchangePaymentRepo) Create(ctx context.Context, payment *entity.ExchangePayment) error {
	query := `
		INSERT INTO exchange_payments (id, exchange_id, amount, method, note, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		payment.ID, payment.ExchangeID, payment.Amount, payment.Method,
		payment.Note, payment.CreatedAt, payment.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert exchange payment: %w", err)
	}
	return nil
}

// ListByExchange devuelve el historial de pagos en orden cronológico.
func (r *ExchangePaymentRepo) ListByExchange(ctx context.Context, exchangeID string) ([]*entity.ExchangePayment, error) {
	query := `
		SELECT id, exchange_id, amount, method, note, created_at, created_by
		FROM exchange_payments
		WHERE exchange_id = $1
		ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("list exchange payments: %w", err)
	}
	defer rows.Close()

	var payments []*entity.ExchangePayment
	for rows.Next() {
		var p entity.ExchangePayment
		if err := rows.Scan(&p.ID, &p.ExchangeID, &p.Amount, &p.Method, &p.Note, &p.CreatedAt, &p.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan exchange payment: %w", err)
		}
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}
