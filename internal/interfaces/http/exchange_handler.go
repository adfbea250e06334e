package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dfarias/farmacia-api/internal/application/dto"
	appexchange "github.com/dfarias/farmacia-api/internal/application/exchange"
	"github.com/dfarias/farmacia-api/internal/domain"
)

// ExchangeHandler maneja las peticiones HTTP de intercambios (protegido).
type ExchangeHandler struct {
	uc      *appexchange.ExchangeUseCase
	voucher *appexchange.VoucherUseCase
}

// NewExchangeHandler construye el handler.
func NewExchangeHandler(uc *appexchange.ExchangeUseCase, voucher *appexchange.VoucherUseCase) *ExchangeHandler {
	return &ExchangeHandler{uc: uc, voucher: voucher}
}

// Create crea un intercambio en borrador.
// POST /api/exchanges
func (h *ExchangeHandler) Create(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	userID := GetUserID(c)
	if establishmentID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateExchangeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.Create(c.Context(), establishmentID, userID, in)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Action ejecuta una acción del ciclo de vida sobre un intercambio existente:
// send, accept, refuse, confirm_payment, close, cancel o una edición de línea.
// El header Idempotency-Key (opcional) protege los reintentos del cliente.
// PUT /api/exchanges
func (h *ExchangeHandler) Action(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	userID := GetUserID(c)
	if establishmentID == "" || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.ExchangeActionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.ID == "" || in.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id y action son requeridos"})
	}
	out, err := h.uc.Apply(c.Context(), establishmentID, userID, in, c.Get("Idempotency-Key"))
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(out)
}

// List devuelve el listado paginado de intercambios del establecimiento.
// recus=true lista los intercambios de colegas que esperan mi acción.
// GET /api/exchanges
func (h *ExchangeHandler) List(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.ListExchangesRequest
	if err := c.QueryParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros de query inválidos"})
	}
	out, err := h.uc.List(c.Context(), establishmentID, in)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(out)
}

// GetByID devuelve el agregado completo (con historial de pagos).
// GET /api/exchanges/:id
func (h *ExchangeHandler) GetByID(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	out, err := h.uc.Get(c.Context(), establishmentID, id)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(out)
}

// GetByReference busca el intercambio por su referencia legible (ECH-...).
// GET /api/exchanges/reference/:reference
func (h *ExchangeHandler) GetByReference(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	reference := c.Params("reference")
	if reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "referencia requerida"})
	}
	out, err := h.uc.GetByReference(c.Context(), establishmentID, reference)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(out)
}

// Movements devuelve el diario de movimientos de stock del intercambio:
// débitos del envío, restauraciones y lotes materializados al cerrar.
// GET /api/exchanges/:id/movements
func (h *ExchangeHandler) Movements(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	out, err := h.uc.ListMovements(c.Context(), establishmentID, id)
	if err != nil {
		return exchangeError(c, err)
	}
	return c.JSON(out)
}

// Delete elimina un borrador. El id puede viajar en el path o como query
// param (?id=, el contrato histórico del front).
// DELETE /api/exchanges/:id
// DELETE /api/exchanges?id=
func (h *ExchangeHandler) Delete(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		id = c.Query("id")
	}
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	if err := h.uc.Delete(c.Context(), establishmentID, id); err != nil {
		return exchangeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// VoucherPDF devuelve el comprobante imprimible del intercambio.
// GET /api/exchanges/:id/pdf
func (h *ExchangeHandler) VoucherPDF(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	pdfBytes, err := h.voucher.GetVoucherPDF(c.Context(), establishmentID, id)
	if err != nil {
		return exchangeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(pdfBytes)
}

// exchangeError mapea los errores de dominio del motor de intercambios a HTTP.
// Los conflictos de estado, stock, pago y concurrencia son todos 409: la
// petición era válida pero el estado actual del recurso no la admite.
func exchangeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "intercambio o recurso no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: "el estado actual no admite esta acción"})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente en el lote"})
	case errors.Is(err, domain.ErrAmountExceedsDue):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "AMOUNT_EXCEEDS_DUE", Message: "el monto excede el saldo pendiente"})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: "el intercambio fue modificado por otra operación; reintentar"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "la operación ya fue procesada con esta clave"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
