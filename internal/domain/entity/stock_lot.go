package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLot representa un lote de stock: una cantidad de un producto recibida
// junta, con su propio precio, número de lote y fecha de vencimiento.
// Quantity es la cantidad disponible; se debita y acredita con updates
// condicionales atómicos, nunca con read-then-write.
type StockLot struct {
	ID              string
	EstablishmentID string
	ProductID       string
	LotNumber       string
	Quantity        int64
	UnitSalePrice   decimal.Decimal
	ExpirationDate  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
