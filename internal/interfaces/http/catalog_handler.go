package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dfarias/farmacia-api/internal/application/catalog"
	"github.com/dfarias/farmacia-api/internal/application/dto"
	"github.com/dfarias/farmacia-api/internal/domain"
)

// CatalogHandler expone el directorio de establecimientos y los catálogos de
// lotes y productos que alimentan las líneas de un intercambio (protegido).
type CatalogHandler struct {
	uc *catalog.CatalogUseCase
}

// NewCatalogHandler construye el handler.
func NewCatalogHandler(uc *catalog.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

// SearchEstablishments busca en el directorio de colegas.
// GET /api/establishments?search=
func (h *CatalogHandler) SearchEstablishments(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros de query inválidos"})
	}
	list, err := h.uc.SearchEstablishments(c.Context(), c.Query("search"), page)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(list)
}

// GetEstablishment devuelve un establecimiento del directorio.
// GET /api/establishments/:id
func (h *CatalogHandler) GetEstablishment(c *fiber.Ctx) error {
	out, err := h.uc.GetEstablishment(c.Context(), c.Params("id"))
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(out)
}

// SearchStockLots lista los lotes disponibles del establecimiento del llamador.
// GET /api/stock-lots?search=
func (h *CatalogHandler) SearchStockLots(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros de query inválidos"})
	}
	list, err := h.uc.SearchStockLots(c.Context(), establishmentID, c.Query("search"), page)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(list)
}

// SearchProducts busca en el catálogo del establecimiento del llamador.
// GET /api/products?search=
func (h *CatalogHandler) SearchProducts(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parámetros de query inválidos"})
	}
	list, err := h.uc.SearchProducts(c.Context(), establishmentID, c.Query("search"), page)
	if err != nil {
		return catalogError(c, err)
	}
	return c.JSON(list)
}

// CreateProduct da de alta un producto en el catálogo del llamador.
// POST /api/products
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	establishmentID := GetEstablishmentID(c)
	if establishmentID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateProductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.CreateProduct(c.Context(), establishmentID, in)
	if err != nil {
		return catalogError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func catalogError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "ya existe un registro con ese código"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
