package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeStatus estado del ciclo de vida de un intercambio.
// Los valores son los mismos que viajan por la API; no cambiarlos.
type ExchangeStatus string

const (
	StatusDraft             ExchangeStatus = "draft"
	StatusPendingAcceptance ExchangeStatus = "pending_acceptance"
	StatusAccepted          ExchangeStatus = "accepted"
	StatusPendingPayment    ExchangeStatus = "pending_payment"
	StatusPaymentConfirmed  ExchangeStatus = "payment_confirmed"
	StatusClosed            ExchangeStatus = "closed"
	StatusRefused           ExchangeStatus = "refused"
	StatusCancelled         ExchangeStatus = "cancelled"
)

// IsValid verifica que el estado sea uno de los conocidos.
func (s ExchangeStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingAcceptance, StatusAccepted, StatusPendingPayment,
		StatusPaymentConfirmed, StatusClosed, StatusRefused, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal indica si el estado es absorbente (no admite más transiciones).
func (s ExchangeStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusRefused || s == StatusCancelled
}

// CanTransitionTo verifica si el estado admite la transición al estado destino.
// payment_confirmed -> payment_confirmed es legal: cada confirmación parcial
// de pago repite el estado acumulando AmountPaid.
func (s ExchangeStatus) CanTransitionTo(target ExchangeStatus) bool {
	switch s {
	case StatusDraft:
		return target == StatusPendingAcceptance || target == StatusPendingPayment || target == StatusCancelled
	case StatusPendingAcceptance:
		return target == StatusAccepted || target == StatusRefused || target == StatusCancelled
	case StatusAccepted:
		return target == StatusPaymentConfirmed
	case StatusPendingPayment:
		return target == StatusPaymentConfirmed
	case StatusPaymentConfirmed:
		return target == StatusPaymentConfirmed || target == StatusClosed
	case StatusClosed, StatusRefused, StatusCancelled:
		return false
	}
	return false
}

func (s ExchangeStatus) String() string { return string(s) }

// ExchangeDirection sentido del intercambio respecto al establecimiento iniciador.
type ExchangeDirection string

const (
	DirectionOutgoing ExchangeDirection = "outgoing" // yo entrego: se debita mi stock al enviar
	DirectionIncoming ExchangeDirection = "incoming" // yo recibo: se crean lotes al cerrar
)

// IsValid verifica que la dirección sea outgoing o incoming.
func (d ExchangeDirection) IsValid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming
}

func (d ExchangeDirection) String() string { return string(d) }

// ExchangeLine línea de un intercambio. Para outgoing referencia el lote de
// origen (StockLotID); para incoming referencia el producto de catálogo
// (ProductID) sobre el que se creará un lote nuevo al cerrar.
type ExchangeLine struct {
	ID             string
	ExchangeID     string
	Position       int // orden de inserción, solo para presentación
	ProductName    string
	ProductCode    *string
	LotNumber      *string
	StockLotID     *string
	ProductID      *string
	Quantity       int64
	UnitPrice      decimal.Decimal
	LineTotal      decimal.Decimal // Quantity * UnitPrice, derivado
	ExpirationDate *time.Time
	Note           *string
}

// ComputeTotal recalcula LineTotal a partir de Quantity y UnitPrice.
func (l *ExchangeLine) ComputeTotal() {
	l.LineTotal = decimal.NewFromInt(l.Quantity).Mul(l.UnitPrice)
}

// Exchange raíz del agregado: un intercambio de lotes entre mi establecimiento
// y un establecimiento colega (confrère), con aceptación y liquidación.
type Exchange struct {
	ID        string
	Reference string // único e inmutable; emitido una sola vez al crear
	Direction ExchangeDirection
	IsManual  bool // contacto manual: sin cuenta recíproca, se salta la aceptación
	Status    ExchangeStatus
	Lines     []ExchangeLine

	// Derivados de Lines; nunca se mutan de forma independiente.
	TotalArticles  int
	TotalQuantity  int64
	EstimatedValue decimal.Decimal

	AmountDue     decimal.Decimal
	AmountPaid    decimal.Decimal
	PaymentMethod *string

	Reason        string
	Note          string
	RefusalReason *string

	// Exactamente uno de los dos es el establecimiento del iniciador; el otro
	// es el colega. InitiatorEstablishmentID desambigua "míos" vs "recibidos".
	SourceEstablishmentID      string
	DestinationEstablishmentID string
	InitiatorEstablishmentID   string

	// Cada timestamp se fija una sola vez y nunca se limpia.
	CreatedAt  time.Time
	SentAt     *time.Time
	ReceivedAt *time.Time
	AcceptedAt *time.Time
	RefusedAt  *time.Time
	PaidAt     *time.Time
	ClosedAt   *time.Time

	UpdatedAt time.Time
	Version   int64 // control optimista: toda escritura exige la versión leída
}

// RecomputeTotals recalcula TotalArticles, TotalQuantity y EstimatedValue a
// partir de las líneas. Mientras el intercambio está en draft, AmountDue
// sigue a EstimatedValue.
func (e *Exchange) RecomputeTotals() {
	e.TotalArticles = len(e.Lines)
	e.TotalQuantity = 0
	e.EstimatedValue = decimal.Zero
	for i := range e.Lines {
		e.Lines[i].ComputeTotal()
		e.TotalQuantity += e.Lines[i].Quantity
		e.EstimatedValue = e.EstimatedValue.Add(e.Lines[i].LineTotal)
	}
	if e.Status == StatusDraft {
		e.AmountDue = e.EstimatedValue
	}
}

// RemainingDue saldo pendiente de pago.
func (e *Exchange) RemainingDue() decimal.Decimal {
	return e.AmountDue.Sub(e.AmountPaid)
}

// PartnerEstablishmentID devuelve el establecimiento colega (el lado que no
// es el iniciador).
func (e *Exchange) PartnerEstablishmentID() string {
	if e.SourceEstablishmentID == e.InitiatorEstablishmentID {
		return e.DestinationEstablishmentID
	}
	return e.SourceEstablishmentID
}

// Involves indica si el establecimiento participa en el intercambio.
func (e *Exchange) Involves(establishmentID string) bool {
	return e.SourceEstablishmentID == establishmentID || e.DestinationEstablishmentID == establishmentID
}

// StockDebited indica si el envío ya debitó stock: solo los intercambios
// outgoing debitan, y únicamente a partir de send (SentAt fijado).
func (e *Exchange) StockDebited() bool {
	return e.Direction == DirectionOutgoing && e.SentAt != nil
}
