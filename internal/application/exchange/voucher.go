package exchange

import (
	"context"

	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
)

// VoucherGenerator genera el comprobante PDF de un intercambio.
type VoucherGenerator interface {
	GenerateVoucher(ctx context.Context, ex *entity.Exchange, initiator, partner *entity.Establishment, payments []*entity.ExchangePayment) ([]byte, error)
}

// VoucherUseCase arma el comprobante imprimible de un intercambio.
type VoucherUseCase struct {
	exchangeRepo repository.ExchangeRepository
	estRepo      repository.EstablishmentRepository
	paymentRepo  repository.ExchangePaymentRepository
	generator    VoucherGenerator
}

// NewVoucherUseCase construye el caso de uso.
func NewVoucherUseCase(
	exchangeRepo repository.ExchangeRepository,
	estRepo repository.EstablishmentRepository,
	paymentRepo repository.ExchangePaymentRepository,
	generator VoucherGenerator,
) *VoucherUseCase {
	return &VoucherUseCase{
		exchangeRepo: exchangeRepo,
		estRepo:      estRepo,
		paymentRepo:  paymentRepo,
		generator:    generator,
	}
}

// GetVoucherPDF genera el comprobante del intercambio. Solo los dos
// establecimientos involucrados pueden pedirlo.
func (uc *VoucherUseCase) GetVoucherPDF(ctx context.Context, establishmentID, id string) ([]byte, error) {
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

	initiator, err := uc.estRepo.GetByID(ctx, ex.InitiatorEstablishmentID)
	if err != nil {
		return nil, err
	}
	partner, err := uc.estRepo.GetByID(ctx, ex.PartnerEstablishmentID())
	if err != nil {
		return nil, err
	}
	if initiator == nil || partner == nil {
		return nil, domain.ErrNotFound
	}

	payments, err := uc.paymentRepo.ListByExchange(ctx, ex.ID)
	if err != nil {
		return nil, err
	}
	return uc.generator.GenerateVoucher(ctx, ex, initiator, partner, payments)
}
