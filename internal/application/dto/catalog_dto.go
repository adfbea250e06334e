package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// EstablishmentResponse entrada del directorio de establecimientos.
type EstablishmentResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Address         string `json:"address,omitempty"`
	Phone           string `json:"phone,omitempty"`
	IsManualPartner bool   `json:"isManualPartner"`
}

// StockLotResponse lote disponible para armar líneas outgoing.
type StockLotResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName"`
	ProductCode    string          `json:"productCode,omitempty"`
	LotNumber      string          `json:"lotNumber,omitempty"`
	Quantity       int64           `json:"quantityAvailable"`
	UnitSalePrice  decimal.Decimal `json:"unitSalePrice"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
}

// ProductResponse entrada del catálogo para líneas incoming.
type ProductResponse struct {
	ID        string          `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	SalePrice decimal.Decimal `json:"salePrice"`
}

// CreateProductRequest alta mínima de producto (usada por seed y pruebas).
type CreateProductRequest struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	SalePrice decimal.Decimal `json:"sale_price"`
}
