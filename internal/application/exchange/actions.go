package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dfarias/farmacia-api/internal/application/dto"
	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
)

// idempotencyTTL ventana durante la cual un reintento con la misma clave de
// idempotencia se rechaza en vez de re-ejecutarse.
const idempotencyTTL = 24 * time.Hour

// Apply ejecuta una acción del ciclo de vida sobre un intercambio:
// send / accept / refuse / confirm_payment / close / cancel y las acciones de
// edición de líneas en borrador. Toda la acción (guardas + efectos de ledger +
// nuevo estado) se confirma o se revierte como una unidad.
//
// Si el cliente envía una clave de idempotencia (header Idempotency-Key), un
// reintento de la misma acción con la misma clave devuelve ErrDuplicate sin
// re-ejecutar efectos.
//
// Un ErrConcurrencyConflict (otra mutación ganó la carrera sobre el agregado)
// se reintenta automáticamente una única vez con estado fresco: señala una
// carrera transitoria, no un error lógico.
func (uc *ExchangeUseCase) Apply(ctx context.Context, establishmentID, userID string, in dto.ExchangeActionRequest, idemKey string) (*dto.ExchangeResponse, error) {
	if in.ID == "" || in.Action == "" {
		return nil, domain.ErrInvalidInput
	}

	if uc.idemStore != nil && idemKey != "" {
		key := fmt.Sprintf("exchange:%s:%s:%s", in.ID, in.Action, idemKey)
		fresh, err := uc.idemStore.MarkProcessed(ctx, key, idempotencyTTL)
		if err != nil {
			// El store de idempotencia es una protección adicional, no un
			// requisito de corrección: la tx y la guarda de estado ya impiden
			// el doble efecto. Ante un fallo del store se continúa.
			uc.log.Warn().Err(err).Str("exchange_id", in.ID).Msg("store de idempotencia no disponible")
		} else if !fresh {
			return nil, domain.ErrDuplicate
		}
	}

	out, err := uc.applyOnce(ctx, establishmentID, userID, in)
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		uc.log.Warn().Str("exchange_id", in.ID).Str("action", in.Action).
			Msg("conflicto de concurrencia, reintentando con estado fresco")
		out, err = uc.applyOnce(ctx, establishmentID, userID, in)
	}
	return out, err
}

// applyOnce carga el agregado, despacha la acción y ejecuta sus efectos en una
// transacción. El Update final exige la versión leída; si otra operación
// escribió entre la carga y el commit, la tx falla con ErrConcurrencyConflict
// y nada queda aplicado.
func (uc *ExchangeUseCase) applyOnce(ctx context.Context, establishmentID, userID string, in dto.ExchangeActionRequest) (*dto.ExchangeResponse, error) {
	ex, err := uc.exchangeRepo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, domain.ErrNotFound
	}
	if !ex.Involves(establishmentID) {
		return nil, domain.ErrForbidden
	}

	now := time.Now()
	err = uc.txRunner.Run(ctx, func(r TxRepos) error {
		switch in.Action {
		case dto.ActionSend:
			return uc.doSend(ctx, r, ex, establishmentID, userID, now)
		case dto.ActionAccept:
			return uc.doAccept(ctx, r, ex, establishmentID, now)
		case dto.ActionRefuse:
			return uc.doRefuse(ctx, r, ex, establishmentID, userID, in.RefusalReason, now)
		case dto.ActionConfirmPayment:
			return uc.doConfirmPayment(ctx, r, ex, establishmentID, userID, in, now)
		case dto.ActionClose:
			return uc.doClose(ctx, r, ex, establishmentID, userID, now)
		case dto.ActionCancel:
			return uc.doCancel(ctx, r, ex, establishmentID, userID, now)
		case dto.ActionAddLine, dto.ActionUpdateLine, dto.ActionRemoveLine:
			return uc.doEditLine(ctx, r, ex, establishmentID, in, now)
		default:
			return domain.ErrInvalidInput
		}
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("exchange_id", ex.ID).
		Str("reference", ex.Reference).
		Str("action", in.Action).
		Str("status", ex.Status.String()).
		Msg("acción aplicada al intercambio")

	payments, err := uc.paymentRepo.ListByExchange(ctx, ex.ID)
	if err != nil {
		return nil, err
	}
	return toExchangeResponse(ex, payments), nil
}

// doSend envía el borrador. outgoing: debita atómicamente el lote de cada
// línea (todo o nada entre líneas); incoming: sin efecto de stock, el
// inventario recién se crea al cerrar. Un colega manual no tiene cuenta para
// aceptar, así que el intercambio salta directo a la liquidación.
func (uc *ExchangeUseCase) doSend(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID, userID string, now time.Time) error {
	if ex.InitiatorEstablishmentID != establishmentID {
		return domain.ErrForbidden
	}
	target := entity.StatusPendingAcceptance
	if ex.IsManual {
		target = entity.StatusPendingPayment
	}
	if !ex.Status.CanTransitionTo(target) {
		return domain.ErrInvalidTransition
	}
	if len(ex.Lines) == 0 {
		return domain.ErrInvalidInput
	}

	if ex.Direction == entity.DirectionOutgoing {
		if err := uc.debitLines(ctx, r, ex, userID, now); err != nil {
			return err
		}
	}

	ex.SentAt = &now
	if !ex.IsManual {
		// El registro queda visible para el colega vinculado en este momento.
		ex.ReceivedAt = &now
	}
	ex.Status = target
	ex.UpdatedAt = now
	return r.Exchanges.Update(ctx, ex)
}

// doAccept acepta la solicitud. Solo la parte receptora (el lado que no
// inició el intercambio) puede aceptar.
func (uc *ExchangeUseCase) doAccept(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID string, now time.Time) error {
	if ex.Status != entity.StatusPendingAcceptance {
		return domain.ErrInvalidTransition
	}
	if establishmentID == ex.InitiatorEstablishmentID {
		return domain.ErrForbidden
	}
	ex.AcceptedAt = &now
	ex.Status = entity.StatusAccepted
	ex.UpdatedAt = now
	return r.Exchanges.Update(ctx, ex)
}

// doRefuse rechaza la solicitud (terminal). Si el envío ya había debitado
// stock (outgoing), se restaura exactamente lo debitado.
func (uc *ExchangeUseCase) doRefuse(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID, userID, reason string, now time.Time) error {
	if ex.Status != entity.StatusPendingAcceptance {
		return domain.ErrInvalidTransition
	}
	if establishmentID == ex.InitiatorEstablishmentID {
		return domain.ErrForbidden
	}
	if reason == "" {
		return domain.ErrInvalidInput
	}
	if ex.StockDebited() {
		if err := uc.restoreLines(ctx, r, ex, userID, now); err != nil {
			return err
		}
	}
	ex.RefusedAt = &now
	ex.RefusalReason = &reason
	ex.Status = entity.StatusRefused
	ex.UpdatedAt = now
	return r.Exchanges.Update(ctx, ex)
}

// doConfirmPayment acumula una confirmación parcial de pago. Un monto que
// dejaría AmountPaid por encima de AmountDue se rechaza con
// ErrAmountExceedsDue, nunca se recorta en silencio: el llamador debe
// corregir la cifra.
func (uc *ExchangeUseCase) doConfirmPayment(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID, userID string, in dto.ExchangeActionRequest, now time.Time) error {
	if ex.InitiatorEstablishmentID != establishmentID {
		return domain.ErrForbidden
	}
	if !ex.Status.CanTransitionTo(entity.StatusPaymentConfirmed) {
		return domain.ErrInvalidTransition
	}
	if !in.Amount.GreaterThan(decimal.Zero) || in.PaymentMethod == "" {
		return domain.ErrInvalidInput
	}
	if in.Amount.GreaterThan(ex.RemainingDue()) {
		return domain.ErrAmountExceedsDue
	}

	payment := &entity.ExchangePayment{
		ID:         uuid.New().String(),
		ExchangeID: ex.ID,
		Amount:     in.Amount,
		Method:     in.PaymentMethod,
		Note:       in.Note,
		CreatedAt:  now,
		CreatedBy:  userID,
	}
	if err := r.Payments.Create(ctx, payment); err != nil {
		return err
	}

	ex.AmountPaid = ex.AmountPaid.Add(in.Amount)
	method := in.PaymentMethod
	ex.PaymentMethod = &method
	if ex.PaidAt == nil {
		ex.PaidAt = &now
	}
	ex.Status = entity.StatusPaymentConfirmed
	ex.UpdatedAt = now
	return r.Exchanges.Update(ctx, ex)
}

// doClose cierra el intercambio (terminal). Para incoming materializa un lote
// nuevo por línea en el inventario del receptor; la creación de lotes nuevos
// no tiene contención y siempre procede.
//
// El cierre no exige liquidación completa: basta haber alcanzado
// payment_confirmed. Un saldo pendiente queda registrado en AmountDue −
// AmountPaid.
func (uc *ExchangeUseCase) doClose(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID, userID string, now time.Time) error {
	if ex.InitiatorEstablishmentID != establishmentID {
		return domain.ErrForbidden
	}
	if !ex.Status.CanTransitionTo(entity.StatusClosed) {
		return domain.ErrInvalidTransition
	}

	if ex.Direction == entity.DirectionIncoming {
		for i := range ex.Lines {
			line := &ex.Lines[i]
			if line.ProductID == nil {
				return domain.ErrInvalidInput
			}
			lotNumber := ex.Reference
			if line.LotNumber != nil && *line.LotNumber != "" {
				lotNumber = *line.LotNumber
			}
			lot := &entity.StockLot{
				ID:              uuid.New().String(),
				EstablishmentID: ex.DestinationEstablishmentID,
				ProductID:       *line.ProductID,
				LotNumber:       lotNumber,
				Quantity:        line.Quantity,
				UnitSalePrice:   line.UnitPrice,
				ExpirationDate:  line.ExpirationDate,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := r.Lots.Create(ctx, lot); err != nil {
				return err
			}
			mov := &entity.StockMovement{
				ID:            uuid.New().String(),
				TransactionID: ex.Reference,
				StockLotID:    lot.ID,
				ProductID:     lot.ProductID,
				Type:          entity.MovementExchangeIn,
				Quantity:      line.Quantity,
				UnitPrice:     line.UnitPrice,
				Date:          now,
				CreatedAt:     now,
				CreatedBy:     userID,
			}
			if err := r.Movements.Create(ctx, mov); err != nil {
				return err
			}
		}
	}

	ex.ClosedAt = &now
	ex.Status = entity.StatusClosed
	ex.UpdatedAt = now
	return r.Exchanges.Update(ctx, ex)
}

// doCancel anula el intercambio (terminal). Solo alcanzable desde draft o
// pending_acceptance; si cancel llega después de un send que debitó stock,
// lo restaura.
func (uc *ExchangeUseCase) doCancel(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID, userID string, now time.Time) error {
	if ex.InitiatorEstablishmentID != establishmentID {
		return domain.ErrForbidden
	}
	if !ex.Status.CanTransitionTo(entity.StatusCancelled) {
		return domain.ErrInvalidTransition
	}
	if ex.StockDebited() {
		if err := uc.restoreLines(ctx, r, ex, userID, now); err != nil {
			return err
		}
	}
	ex.Status = entity.StatusCancelled
	ex.UpdatedAt = now
	return r.Exchanges.Update(ctx, ex)
}

// doEditLine agrega, modifica o elimina una línea del borrador. Fuera de
// draft el contenido de las líneas es inmutable.
func (uc *ExchangeUseCase) doEditLine(ctx context.Context, r TxRepos, ex *entity.Exchange, establishmentID string, in dto.ExchangeActionRequest, now time.Time) error {
	if ex.InitiatorEstablishmentID != establishmentID {
		return domain.ErrForbidden
	}
	if ex.Status != entity.StatusDraft {
		return domain.ErrInvalidTransition
	}

	switch in.Action {
	case dto.ActionAddLine:
		if in.Line == nil {
			return domain.ErrInvalidInput
		}
		line, err := uc.buildLine(ctx, establishmentID, ex.Direction, *in.Line)
		if err != nil {
			return err
		}
		line.ExchangeID = ex.ID
		line.Position = len(ex.Lines)
		ex.Lines = append(ex.Lines, *line)

	case dto.ActionUpdateLine:
		if in.LineID == "" || in.Line == nil {
			return domain.ErrInvalidInput
		}
		idx := findLine(ex.Lines, in.LineID)
		if idx < 0 {
			return domain.ErrNotFound
		}
		if in.Line.Quantity <= 0 || (in.Line.UnitPrice != nil && in.Line.UnitPrice.LessThan(decimal.Zero)) {
			return domain.ErrInvalidInput
		}
		line := &ex.Lines[idx]
		// La cantidad editable se limita por la disponibilidad observada
		// ahora, no por la cacheada al agregar la línea: otras operaciones
		// pueden haber consumido el lote desde entonces.
		if line.StockLotID != nil {
			lot, err := r.Lots.GetByID(ctx, *line.StockLotID)
			if err != nil {
				return err
			}
			if lot == nil {
				return domain.ErrNotFound
			}
			if in.Line.Quantity > lot.Quantity {
				return domain.ErrInsufficientStock
			}
		}
		line.Quantity = in.Line.Quantity
		// Un unitPrice omitido conserva el precio actual; un cero explícito
		// es un precio válido y se aplica.
		if in.Line.UnitPrice != nil {
			line.UnitPrice = *in.Line.UnitPrice
		}
		if in.Line.Note != "" {
			note := in.Line.Note
			line.Note = &note
		}
		line.ComputeTotal()

	case dto.ActionRemoveLine:
		if in.LineID == "" {
			return domain.ErrInvalidInput
		}
		idx := findLine(ex.Lines, in.LineID)
		if idx < 0 {
			return domain.ErrNotFound
		}
		ex.Lines = append(ex.Lines[:idx], ex.Lines[idx+1:]...)
		for i := range ex.Lines {
			ex.Lines[i].Position = i
		}
	}

	ex.RecomputeTotals()
	ex.UpdatedAt = now
	if err := r.Exchanges.ReplaceLines(ctx, ex.ID, ex.Lines); err != nil {
		return err
	}
	return r.Exchanges.Update(ctx, ex)
}

// debitLines debita el lote de cada línea y registra el movimiento. Los lotes
// se procesan en orden ascendente de id: toda operación multi-lote toca las
// filas en el mismo orden global y no puede interbloquearse con otra.
func (uc *ExchangeUseCase) debitLines(ctx context.Context, r TxRepos, ex *entity.Exchange, userID string, now time.Time) error {
	for _, line := range sortedByLot(ex.Lines) {
		if line.StockLotID == nil {
			return domain.ErrInvalidInput
		}
		if err := r.Lots.Debit(ctx, *line.StockLotID, line.Quantity); err != nil {
			return err
		}
		mov := &entity.StockMovement{
			ID:            uuid.New().String(),
			TransactionID: ex.Reference,
			StockLotID:    *line.StockLotID,
			ProductID:     deref(line.ProductID),
			Type:          entity.MovementExchangeOut,
			Quantity:      -line.Quantity,
			UnitPrice:     line.UnitPrice,
			Date:          now,
			CreatedAt:     now,
			CreatedBy:     userID,
		}
		if err := r.Movements.Create(ctx, mov); err != nil {
			return err
		}
	}
	return nil
}

// restoreLines acredita de vuelta exactamente lo debitado al enviar, línea
// por línea, y deja el movimiento de restauración en el diario.
func (uc *ExchangeUseCase) restoreLines(ctx context.Context, r TxRepos, ex *entity.Exchange, userID string, now time.Time) error {
	for _, line := range sortedByLot(ex.Lines) {
		if line.StockLotID == nil {
			return domain.ErrInvalidInput
		}
		if err := r.Lots.Credit(ctx, *line.StockLotID, line.Quantity); err != nil {
			return err
		}
		mov := &entity.StockMovement{
			ID:            uuid.New().String(),
			TransactionID: ex.Reference,
			StockLotID:    *line.StockLotID,
			ProductID:     deref(line.ProductID),
			Type:          entity.MovementExchangeRestore,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			Date:          now,
			CreatedAt:     now,
			CreatedBy:     userID,
		}
		if err := r.Movements.Create(ctx, mov); err != nil {
			return err
		}
	}
	return nil
}

// sortedByLot copia las líneas ordenadas por id de lote ascendente (orden
// global fijo de bloqueo).
func sortedByLot(lines []entity.ExchangeLine) []entity.ExchangeLine {
	out := make([]entity.ExchangeLine, len(lines))
	copy(out, lines)
	sort.Slice(out, func(i, j int) bool {
		return deref(out[i].StockLotID) < deref(out[j].StockLotID)
	})
	return out
}

func findLine(lines []entity.ExchangeLine, id string) int {
	for i := range lines {
		if lines[i].ID == id {
			return i
		}
	}
	return -1
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
