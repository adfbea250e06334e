package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dfarias/farmacia-api/internal/application/dto"
	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
	"github.com/dfarias/farmacia-api/pkg/textutil"
)

// CatalogUseCase colaboradores de consulta del motor de intercambios:
// directorio de establecimientos, búsqueda de lotes y catálogo de productos.
// Solo lecturas paginadas; el término de búsqueda se normaliza sin acentos
// para que "Doliprane" encuentre "DOLIPRANÉ".
type CatalogUseCase struct {
	estRepo     repository.EstablishmentRepository
	lotRepo     repository.StockLotRepository
	productRepo repository.ProductRepository
}

// NewCatalogUseCase construye el caso de uso.
func NewCatalogUseCase(
	estRepo repository.EstablishmentRepository,
	lotRepo repository.StockLotRepository,
	productRepo repository.ProductRepository,
) *CatalogUseCase {
	return &CatalogUseCase{estRepo: estRepo, lotRepo: lotRepo, productRepo: productRepo}
}

// SearchEstablishments busca colegas en el directorio.
func (uc *CatalogUseCase) SearchEstablishments(ctx context.Context, query string, page dto.PageRequest) ([]dto.EstablishmentResponse, error) {
	page.DefaultPage()
	list, err := uc.estRepo.Search(ctx, textutil.Normalize(query), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.EstablishmentResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEstablishmentResponse(e))
	}
	return out, nil
}

// GetEstablishment resuelve un establecimiento por id.
func (uc *CatalogUseCase) GetEstablishment(ctx context.Context, id string) (*dto.EstablishmentResponse, error) {
	est, err := uc.estRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if est == nil {
		return nil, domain.ErrNotFound
	}
	resp := toEstablishmentResponse(est)
	return &resp, nil
}

// SearchStockLots busca lotes disponibles del establecimiento (para armar
// líneas outgoing en el borrador).
func (uc *CatalogUseCase) SearchStockLots(ctx context.Context, establishmentID, query string, page dto.PageRequest) ([]dto.StockLotResponse, error) {
	page.DefaultPage()
	lots, err := uc.lotRepo.Search(ctx, establishmentID, textutil.Normalize(query), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockLotResponse, 0, len(lots))
	for _, lot := range lots {
		item := dto.StockLotResponse{
			ID:             lot.ID,
			ProductID:      lot.ProductID,
			LotNumber:      lot.LotNumber,
			Quantity:       lot.Quantity,
			UnitSalePrice:  lot.UnitSalePrice,
			ExpirationDate: lot.ExpirationDate,
		}
		if product, err := uc.productRepo.GetByID(ctx, lot.ProductID); err == nil && product != nil {
			item.ProductName = product.Name
			item.ProductCode = product.Code
		}
		out = append(out, item)
	}
	return out, nil
}

// SearchProducts busca productos del catálogo del establecimiento (para armar
// líneas incoming).
func (uc *CatalogUseCase) SearchProducts(ctx context.Context, establishmentID, query string, page dto.PageRequest) ([]dto.ProductResponse, error) {
	page.DefaultPage()
	products, err := uc.productRepo.Search(ctx, establishmentID, textutil.Normalize(query), page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, dto.ProductResponse{
			ID:        p.ID,
			Code:      p.Code,
			Name:      p.Name,
			SalePrice: p.SalePrice,
		})
	}
	return out, nil
}

// CreateProduct alta mínima de producto en el catálogo del establecimiento.
func (uc *CatalogUseCase) CreateProduct(ctx context.Context, establishmentID string, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if in.Code == "" || in.Name == "" || in.SalePrice.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidInput
	}
	existing, err := uc.productRepo.GetByCode(ctx, establishmentID, in.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}
	now := time.Now()
	product := &entity.Product{
		ID:              uuid.New().String(),
		EstablishmentID: establishmentID,
		Code:            in.Code,
		Name:            in.Name,
		SalePrice:       in.SalePrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return &dto.ProductResponse{ID: product.ID, Code: product.Code, Name: product.Name, SalePrice: product.SalePrice}, nil
}

func toEstablishmentResponse(e *entity.Establishment) dto.EstablishmentResponse {
	return dto.EstablishmentResponse{
		ID:              e.ID,
		Name:            e.Name,
		Type:            e.Type,
		Address:         e.Address,
		Phone:           e.Phone,
		IsManualPartner: e.IsManualPartner(),
	}
}
