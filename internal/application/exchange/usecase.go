package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dfarias/farmacia-api/internal/application/dto"
	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
	"github.com/dfarias/farmacia-api/pkg/logger"
)

// ExchangeUseCase controlador del motor de intercambios entre establecimientos:
// valida la acción solicitada contra el estado actual, orquesta los efectos
// sobre el ledger de stock y el de liquidación dentro de una transacción, y
// persiste el nuevo estado con control optimista de versión.
//
// Cada acción sobre un intercambio se serializa vía la columna version del
// agregado: dos mutaciones concurrentes sobre el mismo intercambio hacen que
// la segunda falle con ErrConcurrencyConflict; el caso de uso reintenta una
// única vez con estado fresco antes de propagar el error.
type ExchangeUseCase struct {
	txRunner     TxRunner
	exchangeRepo repository.ExchangeRepository
	estRepo      repository.EstablishmentRepository
	lotRepo      repository.StockLotRepository
	productRepo  repository.ProductRepository
	paymentRepo  repository.ExchangePaymentRepository
	movementRepo repository.StockMovementRepository
	idemStore    IdempotencyStore // opcional; nil desactiva las claves de idempotencia
	log          *logger.Logger
}

// NewExchangeUseCase construye el caso de uso.
func NewExchangeUseCase(
	txRunner TxRunner,
	exchangeRepo repository.ExchangeRepository,
	estRepo repository.EstablishmentRepository,
	lotRepo repository.StockLotRepository,
	productRepo repository.ProductRepository,
	paymentRepo repository.ExchangePaymentRepository,
	movementRepo repository.StockMovementRepository,
	idemStore IdempotencyStore,
	log *logger.Logger,
) *ExchangeUseCase {
	return &ExchangeUseCase{
		txRunner:     txRunner,
		exchangeRepo: exchangeRepo,
		estRepo:      estRepo,
		lotRepo:      lotRepo,
		productRepo:  productRepo,
		paymentRepo:  paymentRepo,
		movementRepo: movementRepo,
		idemStore:    idemStore,
		log:          log,
	}
}

// Create crea un intercambio en borrador: valida el colega y las líneas,
// emite la referencia y persiste todo en una transacción.
func (uc *ExchangeUseCase) Create(ctx context.Context, establishmentID, userID string, in dto.CreateExchangeRequest) (*dto.ExchangeResponse, error) {
	direction := entity.ExchangeDirection(in.Direction)
	if !direction.IsValid() {
		return nil, domain.ErrInvalidInput
	}
	if in.PartnerEstablishmentID == "" || in.PartnerEstablishmentID == establishmentID {
		return nil, domain.ErrInvalidInput
	}

	partner, err := uc.estRepo.GetByID(ctx, in.PartnerEstablishmentID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, domain.ErrNotFound
	}

	now := time.Now()
	ex := &entity.Exchange{
		ID:                       uuid.New().String(),
		Direction:                direction,
		IsManual:                 partner.IsManualPartner(),
		Status:                   entity.StatusDraft,
		Reason:                   in.Reason,
		Note:                     in.Note,
		InitiatorEstablishmentID: establishmentID,
		AmountPaid:               decimal.Zero,
		CreatedAt:                now,
		UpdatedAt:                now,
		Version:                  1,
	}
	// outgoing: yo entrego (origen = yo); incoming: yo recibo (origen = colega).
	if direction == entity.DirectionOutgoing {
		ex.SourceEstablishmentID = establishmentID
		ex.DestinationEstablishmentID = partner.ID
	} else {
		ex.SourceEstablishmentID = partner.ID
		ex.DestinationEstablishmentID = establishmentID
	}

	for i, lineIn := range in.Lines {
		line, err := uc.buildLine(ctx, establishmentID, direction, lineIn)
		if err != nil {
			return nil, err
		}
		line.ExchangeID = ex.ID
		line.Position = i
		ex.Lines = append(ex.Lines, *line)
	}
	ex.RecomputeTotals()

	err = uc.txRunner.Run(ctx, func(r TxRepos) error {
		seq, err := r.Exchanges.NextReference(ctx, now.Year())
		if err != nil {
			return err
		}
		ex.Reference = FormatReference(now.Year(), seq)
		return r.Exchanges.Create(ctx, ex)
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("exchange_id", ex.ID).
		Str("reference", ex.Reference).
		Str("direction", direction.String()).
		Bool("manual", ex.IsManual).
		Msg("intercambio creado en borrador")

	return toExchangeResponse(ex, nil), nil
}

// buildLine resuelve una línea contra el lote (outgoing) o el producto de mi
// catálogo (incoming). Para outgoing la cantidad se valida contra la
// disponibilidad observada en este momento; el envío la volverá a validar de
// forma atómica porque otras operaciones pueden consumir el lote entre tanto.
// Un unitPrice omitido toma el precio de venta del lote/producto; un cero
// explícito se respeta.
func (uc *ExchangeUseCase) buildLine(ctx context.Context, establishmentID string, direction entity.ExchangeDirection, in dto.ExchangeLineInput) (*entity.ExchangeLine, error) {
	if in.Quantity <= 0 || (in.UnitPrice != nil && in.UnitPrice.LessThan(decimal.Zero)) {
		return nil, domain.ErrInvalidInput
	}
	line := &entity.ExchangeLine{
		ID:       uuid.New().String(),
		Quantity: in.Quantity,
	}
	if in.UnitPrice != nil {
		line.UnitPrice = *in.UnitPrice
	}
	if in.Note != "" {
		note := in.Note
		line.Note = &note
	}

	switch direction {
	case entity.DirectionOutgoing:
		if in.StockLotID == "" {
			return nil, domain.ErrInvalidInput
		}
		lot, err := uc.lotRepo.GetByID(ctx, in.StockLotID)
		if err != nil {
			return nil, err
		}
		if lot == nil {
			return nil, domain.ErrNotFound
		}
		if lot.EstablishmentID != establishmentID {
			return nil, domain.ErrForbidden
		}
		if in.Quantity > lot.Quantity {
			return nil, domain.ErrInsufficientStock
		}
		product, err := uc.productRepo.GetByID(ctx, lot.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.ErrNotFound
		}
		lotID := lot.ID
		line.StockLotID = &lotID
		productID := product.ID
		line.ProductID = &productID
		line.ProductName = product.Name
		code := product.Code
		line.ProductCode = &code
		if lot.LotNumber != "" {
			ln := lot.LotNumber
			line.LotNumber = &ln
		}
		line.ExpirationDate = lot.ExpirationDate
		if in.UnitPrice == nil {
			line.UnitPrice = lot.UnitSalePrice
		}

	case entity.DirectionIncoming:
		if in.ProductID == "" {
			return nil, domain.ErrInvalidInput
		}
		product, err := uc.productRepo.GetByID(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, domain.ErrNotFound
		}
		if product.EstablishmentID != establishmentID {
			return nil, domain.ErrForbidden
		}
		productID := product.ID
		line.ProductID = &productID
		line.ProductName = product.Name
		code := product.Code
		line.ProductCode = &code
		if in.UnitPrice == nil {
			line.UnitPrice = product.SalePrice
		}
	}

	line.ComputeTotal()
	return line, nil
}

// Get carga el agregado completo con su historial de pagos. Solo los dos
// lados del intercambio pueden consultarlo.
func (uc *ExchangeUseCase) Get(ctx context.Context, establishmentID, id string) (*dto.ExchangeResponse, error) {
	ex, err := uc.exchangeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, domain.ErrNotFound
	}
	if !ex.Involves(establishmentID) {
		return nil, domain.ErrForbidden
	}
	payments, err := uc.paymentRepo.ListByExchange(ctx, ex.ID)
	if err != nil {
		return nil, err
	}
	return toExchangeResponse(ex, payments), nil
}

// GetByReference carga el agregado por su referencia legible (ECH-...), la
// forma en que los comprobantes y los colegas citan un intercambio.
func (uc *ExchangeUseCase) GetByReference(ctx context.Context, establishmentID, reference string) (*dto.ExchangeResponse, error) {
	ex, err := uc.exchangeRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, domain.ErrNotFound
	}
	if !ex.Involves(establishmentID) {
		return nil, domain.ErrForbidden
	}
	payments, err := uc.paymentRepo.ListByExchange(ctx, ex.ID)
	if err != nil {
		return nil, err
	}
	return toExchangeResponse(ex, payments), nil
}

// ListMovements devuelve el diario de movimientos de stock del intercambio
// (débitos del envío, restauraciones, lotes materializados al cerrar), para
// conciliar cada efecto sobre el inventario contra la referencia.
func (uc *ExchangeUseCase) ListMovements(ctx context.Context, establishmentID, id string) ([]dto.StockMovementResponse, error) {
	ex, err := uc.exchangeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, domain.ErrNotFound
	}
	if !ex.Involves(establishmentID) {
		return nil, domain.ErrForbidden
	}
	movements, err := uc.movementRepo.ListByTransaction(ctx, ex.Reference)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, dto.StockMovementResponse{
			ID:         m.ID,
			Type:       m.Type,
			StockLotID: m.StockLotID,
			ProductID:  m.ProductID,
			Quantity:   m.Quantity,
			UnitPrice:  m.UnitPrice,
			Date:       m.Date,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}

// List devuelve el listado paginado de intercambios del establecimiento.
// recus=true invierte la vista: intercambios iniciados por colegas que
// involucran a mi establecimiento (los que esperan mi acción).
func (uc *ExchangeUseCase) List(ctx context.Context, establishmentID string, in dto.ListExchangesRequest) (*dto.ListExchangesResponse, error) {
	in.DefaultPage()
	if in.Status != "" && !entity.ExchangeStatus(in.Status).IsValid() {
		return nil, domain.ErrInvalidInput
	}
	if in.Direction != "" && !entity.ExchangeDirection(in.Direction).IsValid() {
		return nil, domain.ErrInvalidInput
	}
	list, total, err := uc.exchangeRepo.List(ctx, repository.ExchangeFilter{
		EstablishmentID: establishmentID,
		Search:          in.Search,
		Status:          entity.ExchangeStatus(in.Status),
		Direction:       entity.ExchangeDirection(in.Direction),
		Received:        in.Recus,
		Limit:           in.Limit,
		Offset:          in.Offset,
	})
	if err != nil {
		return nil, err
	}
	out := &dto.ListExchangesResponse{
		Exchanges:    make([]dto.ExchangeResponse, 0, len(list)),
		PageResponse: dto.PageResponse{Limit: in.Limit, Offset: in.Offset, Total: total},
	}
	for _, ex := range list {
		out.Exchanges = append(out.Exchanges, *toExchangeResponse(ex, nil))
	}
	return out, nil
}

// Delete elimina un borrador. Solo el iniciador puede borrarlo y solo en
// draft: fuera de draft ya hubo efectos sobre los ledgers y la eliminación
// sería una transición ilegal.
func (uc *ExchangeUseCase) Delete(ctx context.Context, establishmentID, id string) error {
	ex, err := uc.exchangeRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ex == nil {
		return domain.ErrNotFound
	}
	if ex.InitiatorEstablishmentID != establishmentID {
		return domain.ErrForbidden
	}
	if ex.Status != entity.StatusDraft {
		return domain.ErrInvalidTransition
	}
	return uc.txRunner.Run(ctx, func(r TxRepos) error {
		return r.Exchanges.Delete(ctx, ex.ID)
	})
}

// toExchangeResponse mapea el agregado al DTO de respuesta.
func toExchangeResponse(ex *entity.Exchange, payments []*entity.ExchangePayment) *dto.ExchangeResponse {
	out := &dto.ExchangeResponse{
		ID:                         ex.ID,
		Reference:                  ex.Reference,
		Direction:                  ex.Direction.String(),
		IsManual:                   ex.IsManual,
		Status:                     ex.Status.String(),
		Lines:                      make([]dto.ExchangeLineResponse, 0, len(ex.Lines)),
		TotalArticles:              ex.TotalArticles,
		TotalQuantity:              ex.TotalQuantity,
		EstimatedValue:             ex.EstimatedValue,
		AmountDue:                  ex.AmountDue,
		AmountPaid:                 ex.AmountPaid,
		PaymentMethod:              ex.PaymentMethod,
		Reason:                     ex.Reason,
		Note:                       ex.Note,
		RefusalReason:              ex.RefusalReason,
		SourceEstablishmentID:      ex.SourceEstablishmentID,
		DestinationEstablishmentID: ex.DestinationEstablishmentID,
		CreatedAt:                  ex.CreatedAt,
		SentAt:                     ex.SentAt,
		ReceivedAt:                 ex.ReceivedAt,
		AcceptedAt:                 ex.AcceptedAt,
		RefusedAt:                  ex.RefusedAt,
		PaidAt:                     ex.PaidAt,
		ClosedAt:                   ex.ClosedAt,
	}
	for _, l := range ex.Lines {
		out.Lines = append(out.Lines, dto.ExchangeLineResponse{
			ID:             l.ID,
			ProductName:    l.ProductName,
			ProductCode:    l.ProductCode,
			LotNumber:      l.LotNumber,
			StockLotID:     l.StockLotID,
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			LineTotal:      l.LineTotal,
			ExpirationDate: l.ExpirationDate,
			Note:           l.Note,
		})
	}
	for _, p := range payments {
		out.Payments = append(out.Payments, dto.ExchangePaymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Note:      p.Note,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}
