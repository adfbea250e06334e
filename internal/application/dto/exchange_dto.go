package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Los nombres de campo JSON de los intercambios son camelCase: es el contrato
// histórico del front de intercambios y se preserva tal cual (incluido el
// parámetro de query "recus" del listado).

// ExchangeLineInput línea en la creación o edición de un borrador.
// Outgoing: stockLotId obligatorio. Incoming: productId obligatorio.
// Si unitPrice se omite, al crear se toma el precio de venta del
// lote/producto y al editar se conserva el precio actual de la línea; un
// cero explícito es un precio válido (mercadería regalada entre colegas).
type ExchangeLineInput struct {
	StockLotID string           `json:"stockLotId,omitempty"`
	ProductID  string           `json:"productId,omitempty"`
	Quantity   int64            `json:"quantity"`
	UnitPrice  *decimal.Decimal `json:"unitPrice,omitempty"`
	Note       string           `json:"note,omitempty"`
}

// CreateExchangeRequest body de POST /api/exchanges (crea un borrador).
type CreateExchangeRequest struct {
	PartnerEstablishmentID string              `json:"partnerEstablishmentId"`
	Direction              string              `json:"direction"` // outgoing | incoming
	Reason                 string              `json:"reason"`
	Note                   string              `json:"note"`
	Lines                  []ExchangeLineInput `json:"lines"`
}

// Acciones aceptadas por PUT /api/exchanges.
const (
	ActionSend           = "send"
	ActionAccept         = "accept"
	ActionRefuse         = "refuse"
	ActionConfirmPayment = "confirm_payment"
	ActionClose          = "close"
	ActionCancel         = "cancel"
	ActionAddLine        = "add_line"
	ActionUpdateLine     = "update_line"
	ActionRemoveLine     = "remove_line"
)

// ExchangeActionRequest body de PUT /api/exchanges: {id, action, ...payload}.
// El payload depende de la acción: refuse exige refusalReason; confirm_payment
// exige amount y paymentMethod; las acciones de línea usan line/lineId.
type ExchangeActionRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`

	RefusalReason string `json:"refusalReason,omitempty"`

	Amount        decimal.Decimal `json:"amount,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Note          string          `json:"note,omitempty"`

	Line   *ExchangeLineInput `json:"line,omitempty"`
	LineID string             `json:"lineId,omitempty"`
}

// ListExchangesRequest query de GET /api/exchanges.
type ListExchangesRequest struct {
	Search    string `query:"search"`
	Status    string `query:"status"`
	Direction string `query:"direction"`
	Recus     bool   `query:"recus"` // true = intercambios de colegas que esperan mi acción
	PageRequest
}

// ExchangeLineResponse línea en la respuesta del agregado.
type ExchangeLineResponse struct {
	ID             string          `json:"id"`
	ProductName    string          `json:"productName"`
	ProductCode    *string         `json:"productCode,omitempty"`
	LotNumber      *string         `json:"lotNumber,omitempty"`
	StockLotID     *string         `json:"stockLotId,omitempty"`
	ProductID      *string         `json:"productId,omitempty"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
	Note           *string         `json:"note,omitempty"`
}

// ExchangePaymentResponse una confirmación de pago en el historial.
type ExchangePaymentResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ExchangeResponse agregado completo devuelto por la API.
type ExchangeResponse struct {
	ID                         string                    `json:"id"`
	Reference                  string                    `json:"reference"`
	Direction                  string                    `json:"direction"`
	IsManual                   bool                      `json:"isManual"`
	Status                     string                    `json:"status"`
	Lines                      []ExchangeLineResponse    `json:"lines"`
	TotalArticles              int                       `json:"totalArticles"`
	TotalQuantity              int64                     `json:"totalQuantity"`
	EstimatedValue             decimal.Decimal           `json:"estimatedValue"`
	AmountDue                  decimal.Decimal           `json:"amountDue"`
	AmountPaid                 decimal.Decimal           `json:"amountPaid"`
	PaymentMethod              *string                   `json:"paymentMethod,omitempty"`
	Reason                     string                    `json:"reason,omitempty"`
	Note                       string                    `json:"note,omitempty"`
	RefusalReason              *string                   `json:"refusalReason,omitempty"`
	SourceEstablishmentID      string                    `json:"sourceEstablishmentId"`
	DestinationEstablishmentID string                    `json:"destinationEstablishmentId"`
	Payments                   []ExchangePaymentResponse `json:"payments,omitempty"`
	CreatedAt                  time.Time                 `json:"createdAt"`
	SentAt                     *time.Time                `json:"sentAt,omitempty"`
	ReceivedAt                 *time.Time                `json:"receivedAt,omitempty"`
	AcceptedAt                 *time.Time                `json:"acceptedAt,omitempty"`
	RefusedAt                  *time.Time                `json:"refusedAt,omitempty"`
	PaidAt                     *time.Time                `json:"paidAt,omitempty"`
	ClosedAt                   *time.Time                `json:"closedAt,omitempty"`
}

// StockMovementResponse un asiento del diario de stock de un intercambio:
// débito del envío (cantidad negativa), restauración por refuse/cancel o
// lote materializado al cerrar un incoming (cantidades positivas).
type StockMovementResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	StockLotID string          `json:"stockLotId"`
	ProductID  string          `json:"productId,omitempty"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Date       time.Time       `json:"date"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ListExchangesResponse listado paginado.
type ListExchangesResponse struct {
	Exchanges []ExchangeResponse `json:"exchanges"`
	PageResponse
}
