package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de stock generados por el motor de intercambios.
const (
	MovementExchangeOut     = "EXCHANGE_OUT"     // débito de lote al enviar un outgoing
	MovementExchangeRestore = "EXCHANGE_RESTORE" // restauración por refuse/cancel
	MovementExchangeIn      = "EXCHANGE_IN"      // lote nuevo materializado al cerrar un incoming
)

// StockMovement registro de auditoría de cada efecto sobre el ledger de stock.
// TransactionID lleva la referencia del intercambio que originó el movimiento,
// de modo que débitos y restauraciones se pueden conciliar por intercambio.
type StockMovement struct {
	ID            string
	TransactionID string // referencia del intercambio (Exchange.Reference)
	StockLotID    string
	ProductID     string
	Type          string
	Quantity      int64 // positivo entrada/restauración, negativo salida
	UnitPrice     decimal.Decimal
	Date          time.Time
	CreatedAt     time.Time
	CreatedBy     string
}
