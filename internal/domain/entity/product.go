package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo de un establecimiento.
// El stock no vive aquí: se maneja por lote en StockLot.
type Product struct {
	ID              string
	EstablishmentID string
	Code            string // código único por establecimiento (CIP/EAN interno)
	Name            string
	Description     string
	SalePrice       decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
