package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Métodos de pago aceptados en la liquidación.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
	PaymentMethodCheck    = "check"
	PaymentMethodCredit   = "credit"
)

// ExchangePayment una confirmación parcial de pago sobre un intercambio.
// El historial completo de la liquidación es la suma de estas filas; el
// agregado mantiene AmountPaid como acumulado.
type ExchangePayment struct {
	ID         string
	ExchangeID string
	Amount     decimal.Decimal
	Method     string
	Note       string
	CreatedAt  time.Time
	CreatedBy  string
}
