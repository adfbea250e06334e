package exchange_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfarias/farmacia-api/internal/application/dto"
	"github.com/dfarias/farmacia-api/internal/application/exchange"
	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: dos farmacias vinculadas (A y B), un contacto manual (M),
// catálogo y lotes cargados en A.
// ──────────────────────────────────────────────────────────────────────────────

const (
	estA = "aaaaaaaa-0000-0000-0000-000000000001" // mi establecimiento
	estB = "bbbbbbbb-0000-0000-0000-000000000002" // colega vinculado
	estM = "cccccccc-0000-0000-0000-000000000003" // contacto manual

	userA = "aaaaaaaa-1111-0000-0000-000000000001"
	userB = "bbbbbbbb-1111-0000-0000-000000000002"

	productAmox = "dddddddd-0000-0000-0000-000000000001"
	productIbu  = "dddddddd-0000-0000-0000-000000000002"

	lotAmox = "eeeeeeee-0000-0000-0000-000000000001"
	lotIbu  = "eeeeeeee-0000-0000-0000-000000000002"
)

type fixture struct {
	store *memStore
	uc    *exchange.ExchangeUseCase
	idem  *fakeIdemStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newMemStore()
	now := time.Now()

	linked := func(ref string) *string { return &ref }
	s.establishments[estA] = &entity.Establishment{
		ID: estA, Name: "Farmacia del Centro", Type: entity.EstablishmentTypePharmacy,
		LinkedAccountRef: linked("centro"), CreatedAt: now, UpdatedAt: now,
	}
	s.establishments[estB] = &entity.Establishment{
		ID: estB, Name: "Farmacia San Rafael", Type: entity.EstablishmentTypePharmacy,
		LinkedAccountRef: linked("sanrafael"), CreatedAt: now, UpdatedAt: now,
	}
	s.establishments[estM] = &entity.Establishment{
		ID: estM, Name: "Droguería La Esquina", Type: entity.EstablishmentTypePharmacy,
		CreatedAt: now, UpdatedAt: now, // sin cuenta vinculada
	}

	s.products[productAmox] = &entity.Product{
		ID: productAmox, EstablishmentID: estA, Code: "AMOX500",
		Name: "Amoxicilina 500mg x20", SalePrice: decimal.NewFromInt(20),
	}
	s.products[productIbu] = &entity.Product{
		ID: productIbu, EstablishmentID: estA, Code: "IBU400",
		Name: "Ibuprofeno 400mg x30", SalePrice: decimal.NewFromInt(10),
	}

	expiry := now.AddDate(1, 0, 0)
	s.lots[lotAmox] = &entity.StockLot{
		ID: lotAmox, EstablishmentID: estA, ProductID: productAmox,
		LotNumber: "L2406A", Quantity: 100, UnitSalePrice: decimal.NewFromInt(20),
		ExpirationDate: &expiry,
	}
	s.lots[lotIbu] = &entity.StockLot{
		ID: lotIbu, EstablishmentID: estA, ProductID: productIbu,
		LotNumber: "L2312C", Quantity: 50, UnitSalePrice: decimal.NewFromInt(10),
	}

	idem := newFakeIdemStore()
	uc := exchange.NewExchangeUseCase(
		&fakeTxRunner{s: s},
		&fakeExchangeRepo{s: s},
		&fakeEstablishmentRepo{s: s},
		&fakeLotRepo{s: s},
		&fakeProductRepo{s: s},
		&fakePaymentRepo{s: s},
		&fakeMovementRepo{s: s},
		idem,
		logger.Nop(),
	)
	return &fixture{store: s, uc: uc, idem: idem}
}

// createOutgoing crea un borrador outgoing de A hacia partner con dos líneas
// (3 x amoxicilina a 20, 2 x ibuprofeno a 10 → valor estimado 80).
func (f *fixture) createOutgoing(t *testing.T, partner string) *dto.ExchangeResponse {
	t.Helper()
	out, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: partner,
		Direction:              "outgoing",
		Reason:                 "reposición urgente",
		Lines: []dto.ExchangeLineInput{
			{StockLotID: lotAmox, Quantity: 3},
			{StockLotID: lotIbu, Quantity: 2},
		},
	})
	require.NoError(t, err, "el borrador debe crearse")
	return out
}

func (f *fixture) apply(t *testing.T, est, user string, in dto.ExchangeActionRequest) (*dto.ExchangeResponse, error) {
	t.Helper()
	return f.uc.Apply(context.Background(), est, user, in, "")
}

func (f *fixture) lotQty(id string) int64 {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.lots[id].Quantity
}

func (f *fixture) movementTypes(reference string) []string {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []string
	for _, m := range f.store.movements {
		if m.TransactionID == reference {
			out = append(out, m.Type)
		}
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Creación de borradores
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_BorradorOutgoingConTotales(t *testing.T) {
	f := newFixture(t)
	out := f.createOutgoing(t, estB)

	assert.Equal(t, "draft", out.Status)
	assert.False(t, out.IsManual, "B es colega vinculado")
	assert.Equal(t, 2, out.TotalArticles)
	assert.Equal(t, int64(5), out.TotalQuantity)
	assert.True(t, out.EstimatedValue.Equal(decimal.NewFromInt(80)),
		"3x20 + 2x10 = 80, precios tomados del lote")
	assert.True(t, out.AmountDue.Equal(decimal.NewFromInt(80)),
		"en borrador AmountDue sigue al valor estimado")
	assert.Equal(t, estA, out.SourceEstablishmentID, "outgoing: yo soy el origen")
	assert.Equal(t, estB, out.DestinationEstablishmentID)

	// La creación del borrador no toca stock.
	assert.Equal(t, int64(100), f.lotQty(lotAmox))
	assert.Equal(t, int64(50), f.lotQty(lotIbu))
}

func TestCreate_ReferenciasConsecutivasPorAnio(t *testing.T) {
	f := newFixture(t)
	year := time.Now().Year()

	first := f.createOutgoing(t, estB)
	second := f.createOutgoing(t, estM)

	assert.Equal(t, exchange.FormatReference(year, 1), first.Reference)
	assert.Equal(t, exchange.FormatReference(year, 2), second.Reference)

	// Borrar un borrador no devuelve su referencia al contador.
	require.NoError(t, f.uc.Delete(context.Background(), estA, second.ID))
	third := f.createOutgoing(t, estB)
	assert.Equal(t, exchange.FormatReference(year, 3), third.Reference)
}

func TestCreate_RechazaLineaSobreLoteAjeno(t *testing.T) {
	f := newFixture(t)
	// El lote pertenece a A; B no puede armar líneas con él.
	_, err := f.uc.Create(context.Background(), estB, userB, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estA,
		Direction:              "outgoing",
		Lines:                  []dto.ExchangeLineInput{{StockLotID: lotAmox, Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreate_RechazaCantidadMayorALaDisponible(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estB,
		Direction:              "outgoing",
		Lines:                  []dto.ExchangeLineInput{{StockLotID: lotAmox, Quantity: 500}},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestCreate_RechazaColegaInexistenteYDireccionInvalida(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: "no-existe", Direction: "outgoing",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estB, Direction: "sideways",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Un intercambio consigo mismo no tiene sentido.
	_, err = f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estA, Direction: "outgoing",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Envío
// ──────────────────────────────────────────────────────────────────────────────

func TestSend_ColegaVinculadoPasaAPendingAcceptanceYDebita(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	assert.Equal(t, "pending_acceptance", out.Status)
	assert.NotNil(t, out.SentAt)
	assert.NotNil(t, out.ReceivedAt, "visible para el colega vinculado desde el envío")
	assert.Equal(t, int64(97), f.lotQty(lotAmox), "el envío debita el lote")
	assert.Equal(t, int64(48), f.lotQty(lotIbu))
	assert.ElementsMatch(t, []string{entity.MovementExchangeOut, entity.MovementExchangeOut},
		f.movementTypes(ex.Reference), "un movimiento de salida por línea")
}

func TestSend_ContactoManualSaltaDirectoALiquidacion(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estM)

	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	assert.Equal(t, "pending_payment", out.Status,
		"un contacto manual no tiene cuenta para aceptar")
	assert.Nil(t, out.ReceivedAt, "un contacto manual no recibe nada en el sistema")
	assert.Equal(t, int64(97), f.lotQty(lotAmox))
}

func TestSend_SinLineasRechazado(t *testing.T) {
	f := newFixture(t)
	out, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estB, Direction: "outgoing",
	})
	require.NoError(t, err)

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: out.ID, Action: dto.ActionSend})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSend_StockInsuficienteNoDejaDebitoParcial(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	// Otra operación consume el segundo lote después de armar el borrador.
	// El orden de débito es por id de lote ascendente, así que el primero
	// (amoxicilina) se debita antes de que el segundo falle.
	require.NoError(t, (&fakeLotRepo{s: f.store}).Debit(context.Background(), lotIbu, 49))

	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Nada quedó aplicado: ni débito parcial ni cambio de estado.
	assert.Equal(t, int64(100), f.lotQty(lotAmox), "el débito de la primera línea se revierte")
	assert.Equal(t, int64(1), f.lotQty(lotIbu))
	got, err := f.uc.Get(context.Background(), estA, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Status, "el intercambio sigue en borrador")
	assert.Empty(t, f.movementTypes(ex.Reference))
}

func TestSend_SoloElIniciadorPuedeEnviar(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	_, err := f.apply(t, estB, userB, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// ──────────────────────────────────────────────────────────────────────────────
// Aceptación y rechazo
// ──────────────────────────────────────────────────────────────────────────────

func TestAccept_SoloLaParteReceptora(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	// El iniciador no puede aceptar su propia solicitud.
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionAccept})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	out, err := f.apply(t, estB, userB, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionAccept})
	require.NoError(t, err)
	assert.Equal(t, "accepted", out.Status)
	assert.NotNil(t, out.AcceptedAt)
}

func TestRefuse_RestauraElStockDebitado(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	require.Equal(t, int64(97), f.lotQty(lotAmox))

	out, err := f.apply(t, estB, userB, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionRefuse, RefusalReason: "lotes muy próximos a vencer",
	})
	require.NoError(t, err)

	assert.Equal(t, "refused", out.Status)
	require.NotNil(t, out.RefusalReason)
	assert.Equal(t, "lotes muy próximos a vencer", *out.RefusalReason)
	assert.Equal(t, int64(100), f.lotQty(lotAmox), "el rechazo restaura lo debitado")
	assert.Equal(t, int64(50), f.lotQty(lotIbu))
	assert.ElementsMatch(t,
		[]string{entity.MovementExchangeOut, entity.MovementExchangeOut,
			entity.MovementExchangeRestore, entity.MovementExchangeRestore},
		f.movementTypes(ex.Reference))
}

func TestRefuse_ExigeMotivo(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	_, err = f.apply(t, estB, userB, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionRefuse})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRefuse_IncomingNoTocaStock(t *testing.T) {
	f := newFixture(t)
	// A pide mercadería a B: incoming, líneas sobre el catálogo de A.
	ex, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estB,
		Direction:              "incoming",
		Lines:                  []dto.ExchangeLineInput{{ProductID: productAmox, Quantity: 10}},
	})
	require.NoError(t, err)

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	assert.Equal(t, int64(100), f.lotQty(lotAmox), "incoming no debita nada al enviar")

	out, err := f.apply(t, estB, userB, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionRefuse, RefusalReason: "sin disponibilidad",
	})
	require.NoError(t, err)
	assert.Equal(t, "refused", out.Status)
	assert.Empty(t, f.movementTypes(ex.Reference), "nada que restaurar en incoming")
}

// ──────────────────────────────────────────────────────────────────────────────
// Liquidación
// ──────────────────────────────────────────────────────────────────────────────

func TestConfirmPayment_PagosParcialesAcumulanYElExcesoSeRechaza(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estM) // manual: send -> pending_payment
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	// Primer pago parcial: 60 de 80.
	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment,
		Amount: decimal.NewFromInt(60), PaymentMethod: entity.PaymentMethodTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, "payment_confirmed", out.Status)
	assert.True(t, out.AmountPaid.Equal(decimal.NewFromInt(60)))
	assert.NotNil(t, out.PaidAt)

	// 50 más excedería el saldo (20): rechazo sin recorte silencioso.
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment,
		Amount: decimal.NewFromInt(50), PaymentMethod: entity.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrAmountExceedsDue)

	got, err := f.uc.Get(context.Background(), estA, ex.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.Equal(decimal.NewFromInt(60)),
		"el pago rechazado no altera el acumulado")
	assert.Len(t, got.Payments, 1)

	// El saldo exacto sí entra.
	out, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment,
		Amount: decimal.NewFromInt(20), PaymentMethod: entity.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.True(t, out.AmountPaid.Equal(decimal.NewFromInt(80)))
	assert.Len(t, out.Payments, 2, "cada confirmación queda en el historial")
}

func TestConfirmPayment_ExigeMontoYMetodo(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estM)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment, PaymentMethod: entity.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "monto cero o ausente")

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment, Amount: decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "método ausente")
}

func TestConfirmPayment_DesdePendingAcceptanceEsIlegal(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment,
		Amount: decimal.NewFromInt(10), PaymentMethod: entity.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition,
		"el colega vinculado primero debe aceptar")
}

// ──────────────────────────────────────────────────────────────────────────────
// Cierre
// ──────────────────────────────────────────────────────────────────────────────

func TestClose_IncomingMaterializaLotesNuevos(t *testing.T) {
	f := newFixture(t)
	ex, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estB,
		Direction:              "incoming",
		Lines:                  []dto.ExchangeLineInput{{ProductID: productAmox, Quantity: 10}},
	})
	require.NoError(t, err)

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	_, err = f.apply(t, estB, userB, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionAccept})
	require.NoError(t, err)
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment,
		Amount: decimal.NewFromInt(200), PaymentMethod: entity.PaymentMethodTransfer,
	})
	require.NoError(t, err)

	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionClose})
	require.NoError(t, err)
	assert.Equal(t, "closed", out.Status)
	assert.NotNil(t, out.ClosedAt)

	// Un lote nuevo en el inventario de A (el receptor del incoming), con la
	// referencia como número de lote a falta de uno real.
	f.store.mu.Lock()
	var created *entity.StockLot
	for _, lot := range f.store.lots {
		if lot.ID != lotAmox && lot.ID != lotIbu {
			created = lot
		}
	}
	f.store.mu.Unlock()
	require.NotNil(t, created, "el cierre debe crear el lote recibido")
	assert.Equal(t, estA, created.EstablishmentID)
	assert.Equal(t, productAmox, created.ProductID)
	assert.Equal(t, int64(10), created.Quantity)
	assert.Equal(t, ex.Reference, created.LotNumber)
	assert.Contains(t, f.movementTypes(ex.Reference), entity.MovementExchangeIn)
}

func TestClose_OutgoingNoRequiereLiquidacionCompleta(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estM)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionConfirmPayment,
		Amount: decimal.NewFromInt(30), PaymentMethod: entity.PaymentMethodCredit,
	})
	require.NoError(t, err)

	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionClose})
	require.NoError(t, err)
	assert.Equal(t, "closed", out.Status)
	assert.True(t, out.AmountPaid.Equal(decimal.NewFromInt(30)),
		"el saldo pendiente queda registrado, no bloquea el cierre")
}

func TestClose_DesdePendingPaymentSinPagoEsIlegal(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estM)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionClose})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition,
		"cerrar exige al menos una confirmación de pago")
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancelación y estados terminales
// ──────────────────────────────────────────────────────────────────────────────

func TestCancel_DespuesDelEnvioRestauraStock(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	require.Equal(t, int64(97), f.lotQty(lotAmox))

	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionCancel})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", out.Status)
	assert.Equal(t, int64(100), f.lotQty(lotAmox))
	assert.Equal(t, int64(50), f.lotQty(lotIbu))
}

func TestEstadosTerminalesNoAdmitenAcciones(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionCancel})
	require.NoError(t, err)

	for _, action := range []string{dto.ActionSend, dto.ActionCancel, dto.ActionClose} {
		_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: action})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "acción %s sobre cancelled", action)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Edición de líneas y borrado
// ──────────────────────────────────────────────────────────────────────────────

func TestEditLine_SoloEnBorrador(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	// Agregar una tercera línea.
	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionAddLine,
		Line: &dto.ExchangeLineInput{StockLotID: lotAmox, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalArticles)
	assert.True(t, out.EstimatedValue.Equal(decimal.NewFromInt(100)), "80 + 1x20")

	// Modificar la cantidad de la primera línea.
	lineID := out.Lines[0].ID
	out, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionUpdateLine, LineID: lineID,
		Line: &dto.ExchangeLineInput{Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.Lines[0].Quantity)

	// Quitar la tercera línea; las posiciones se reindexan.
	out, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionRemoveLine, LineID: out.Lines[2].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.TotalArticles)

	// Tras el envío las líneas son inmutables.
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionAddLine,
		Line: &dto.ExchangeLineInput{StockLotID: lotIbu, Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestEditLine_PrecioCeroExplicitoSeAplica(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	// Cero explícito: mercadería regalada, el precio de la línea pasa a 0.
	zero := decimal.Zero
	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionUpdateLine, LineID: ex.Lines[0].ID,
		Line: &dto.ExchangeLineInput{Quantity: 3, UnitPrice: &zero},
	})
	require.NoError(t, err)
	assert.True(t, out.Lines[0].UnitPrice.IsZero())
	assert.True(t, out.Lines[0].LineTotal.IsZero())
	assert.True(t, out.EstimatedValue.Equal(decimal.NewFromInt(20)),
		"solo queda la línea de ibuprofeno: 2x10")

	// unitPrice omitido: el precio actual se conserva.
	out, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionUpdateLine, LineID: ex.Lines[0].ID,
		Line: &dto.ExchangeLineInput{Quantity: 1},
	})
	require.NoError(t, err)
	assert.True(t, out.Lines[0].UnitPrice.IsZero(), "omitirlo no lo resetea al precio del lote")

	// Negativo: rechazado.
	negative := decimal.NewFromInt(-1)
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionUpdateLine, LineID: ex.Lines[0].ID,
		Line: &dto.ExchangeLineInput{Quantity: 1, UnitPrice: &negative},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreate_PrecioCeroExplicitoNoTomaElPrecioDelLote(t *testing.T) {
	f := newFixture(t)
	zero := decimal.Zero
	out, err := f.uc.Create(context.Background(), estA, userA, dto.CreateExchangeRequest{
		PartnerEstablishmentID: estB,
		Direction:              "outgoing",
		Lines:                  []dto.ExchangeLineInput{{StockLotID: lotAmox, Quantity: 3, UnitPrice: &zero}},
	})
	require.NoError(t, err)
	assert.True(t, out.EstimatedValue.IsZero(), "cero explícito, no el precio del lote")
}

func TestDelete_SoloBorradoresDelIniciador(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	assert.ErrorIs(t, f.uc.Delete(context.Background(), estB, ex.ID), domain.ErrForbidden)

	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	assert.ErrorIs(t, f.uc.Delete(context.Background(), estA, ex.ID), domain.ErrInvalidTransition,
		"fuera de draft ya hubo efectos de ledger")

	draft := f.createOutgoing(t, estB)
	require.NoError(t, f.uc.Delete(context.Background(), estA, draft.ID))
	_, err = f.uc.Get(context.Background(), estA, draft.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Aislamiento, idempotencia y concurrencia
// ──────────────────────────────────────────────────────────────────────────────

func TestGet_TerceroNoInvolucradoRecibeForbidden(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	_, err := f.uc.Get(context.Background(), estM, ex.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGetByReference_BuscaPorReferenciaConLasMismasReglas(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	out, err := f.uc.GetByReference(context.Background(), estA, ex.Reference)
	require.NoError(t, err)
	assert.Equal(t, ex.ID, out.ID)

	// El colega involucrado también puede resolverla.
	out, err = f.uc.GetByReference(context.Background(), estB, ex.Reference)
	require.NoError(t, err)
	assert.Equal(t, ex.ID, out.ID)

	_, err = f.uc.GetByReference(context.Background(), estM, ex.Reference)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.uc.GetByReference(context.Background(), estA, "ECH-2026-999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListMovements_DiarioConciliaDebitosYRestauraciones(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)
	_, err = f.apply(t, estB, userB, dto.ExchangeActionRequest{
		ID: ex.ID, Action: dto.ActionRefuse, RefusalReason: "vencimiento demasiado corto",
	})
	require.NoError(t, err)

	movements, err := f.uc.ListMovements(context.Background(), estA, ex.ID)
	require.NoError(t, err)
	require.Len(t, movements, 4, "dos débitos del envío y dos restauraciones del rechazo")

	var balance int64
	for _, m := range movements {
		balance += m.Quantity
		assert.Contains(t,
			[]string{entity.MovementExchangeOut, entity.MovementExchangeRestore}, m.Type)
	}
	assert.Zero(t, balance, "débitos y restauraciones se anulan entre sí")

	// El colega involucrado ve el mismo diario; un tercero no.
	theirs, err := f.uc.ListMovements(context.Background(), estB, ex.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 4)

	_, err = f.uc.ListMovements(context.Background(), estM, ex.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestListMovements_BorradorSinMovimientos(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	movements, err := f.uc.ListMovements(context.Background(), estA, ex.ID)
	require.NoError(t, err)
	assert.Empty(t, movements, "un borrador todavía no tocó el stock")
}

func TestList_RecusInvierteLaVista(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)
	_, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err)

	mine, err := f.uc.List(context.Background(), estA, dto.ListExchangesRequest{})
	require.NoError(t, err)
	assert.Len(t, mine.Exchanges, 1, "vista normal: mis intercambios")

	received, err := f.uc.List(context.Background(), estB, dto.ListExchangesRequest{Recus: true})
	require.NoError(t, err)
	assert.Len(t, received.Exchanges, 1, "recus: intercambios de colegas que me involucran")

	empty, err := f.uc.List(context.Background(), estB, dto.ListExchangesRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.Exchanges, "B no inició ninguno")
}

func TestApply_ClaveDeIdempotenciaRechazaElReintento(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	_, err := f.uc.Apply(context.Background(), estA, userA,
		dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend}, "retry-123")
	require.NoError(t, err)

	_, err = f.uc.Apply(context.Background(), estA, userA,
		dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend}, "retry-123")
	assert.ErrorIs(t, err, domain.ErrDuplicate, "misma acción + misma clave = reintento")

	assert.Equal(t, int64(97), f.lotQty(lotAmox), "el reintento no reaplica el débito")
}

func TestApply_ConflictoDeConcurrenciaSeReintentaUnaVez(t *testing.T) {
	f := newFixture(t)
	ex := f.createOutgoing(t, estB)

	f.store.updatesToFail = 1
	out, err := f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex.ID, Action: dto.ActionSend})
	require.NoError(t, err, "un conflicto transitorio se resuelve con el reintento")
	assert.Equal(t, "pending_acceptance", out.Status)
	assert.Equal(t, int64(97), f.lotQty(lotAmox), "el efecto quedó aplicado exactamente una vez")

	// Dos conflictos seguidos agotan el único reintento.
	ex2 := f.createOutgoing(t, estM)
	f.store.updatesToFail = 2
	_, err = f.apply(t, estA, userA, dto.ExchangeActionRequest{ID: ex2.ID, Action: dto.ActionSend})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}
