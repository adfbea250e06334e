// seed carga datos de demostración: dos farmacias vinculadas, un contacto
// manual, un usuario por farmacia y un catálogo pequeño con lotes de stock.
//
// Uso: go run ./cmd/seed (usa la misma configuración de entorno que la API).
package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/infrastructure/postgres"
	"github.com/dfarias/farmacia-api/pkg/config"
	"github.com/dfarias/farmacia-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	estRepo := postgres.NewEstablishmentRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	lotRepo := postgres.NewStockLotRepository(pool)

	now := time.Now()
	linkedRef := func(s string) *string { return &s }

	establishments := []*entity.Establishment{
		{
			ID: uuid.NewString(), Name: "Farmacia del Centro", Type: entity.EstablishmentTypePharmacy,
			Address: "Calle 10 # 4-21", Phone: "601 555 0101",
			LinkedAccountRef: linkedRef("centro"), CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), Name: "Farmacia San Rafael", Type: entity.EstablishmentTypePharmacy,
			Address: "Carrera 15 # 82-30", Phone: "601 555 0202",
			LinkedAccountRef: linkedRef("sanrafael"), CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), Name: "Droguería La Esquina", Type: entity.EstablishmentTypePharmacy,
			Address: "Avenida 68 # 22-15", Phone: "601 555 0303",
			CreatedAt: now, UpdatedAt: now, // sin cuenta vinculada: contacto manual
		},
	}
	for _, est := range establishments {
		if err := estRepo.Create(ctx, est); err != nil {
			log.Fatal().Err(err).Str("name", est.Name).Msg("crear establecimiento")
		}
		log.Info().Str("id", est.ID).Str("name", est.Name).Msg("establecimiento creado")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("farmacia123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash de password")
	}
	users := []*entity.User{
		{
			ID: uuid.NewString(), EstablishmentID: establishments[0].ID,
			Email: "admin@centro.demo", PasswordHash: string(hash),
			Name: "Ana Díaz", Role: entity.RoleAdmin, Status: "active",
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), EstablishmentID: establishments[1].ID,
			Email: "admin@sanrafael.demo", PasswordHash: string(hash),
			Name: "Luis Pardo", Role: entity.RolePharmacist, Status: "active",
			CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, u := range users {
		if err := userRepo.Create(ctx, u); err != nil {
			log.Fatal().Err(err).Str("email", u.Email).Msg("crear usuario")
		}
		log.Info().Str("email", u.Email).Msg("usuario creado (password: farmacia123)")
	}

	type seedProduct struct {
		code, name string
		price      string
		lots       []struct {
			lot    string
			qty    int64
			expiry string // YYYY-MM
		}
	}
	catalog := []seedProduct{
		{code: "AMOX500", name: "Amoxicilina 500mg x20", price: "18500", lots: []struct {
			lot    string
			qty    int64
			expiry string
		}{{"L2406A", 120, "2027-06"}, {"L2409B", 80, "2027-09"}}},
		{code: "IBU400", name: "Ibuprofeno 400mg x30", price: "9800", lots: []struct {
			lot    string
			qty    int64
			expiry string
		}{{"L2312C", 200, "2026-12"}}},
		{code: "PARA500", name: "Paracetamol 500mg x16", price: "6400", lots: []struct {
			lot    string
			qty    int64
			expiry string
		}{{"L2501A", 300, "2028-01"}}},
	}

	// El catálogo y los lotes se cargan en las dos farmacias vinculadas.
	for _, est := range establishments[:2] {
		for _, sp := range catalog {
			price, _ := decimal.NewFromString(sp.price)
			product := &entity.Product{
				ID: uuid.NewString(), EstablishmentID: est.ID,
				Code: sp.code, Name: sp.name, SalePrice: price,
				CreatedAt: now, UpdatedAt: now,
			}
			if err := productRepo.Create(ctx, product); err != nil {
				log.Fatal().Err(err).Str("code", sp.code).Msg("crear producto")
			}
			for _, l := range sp.lots {
				expiry, _ := time.Parse("2006-01", l.expiry)
				lot := &entity.StockLot{
					ID: uuid.NewString(), EstablishmentID: est.ID, ProductID: product.ID,
					LotNumber: l.lot, Quantity: l.qty, UnitSalePrice: price,
					ExpirationDate: &expiry, CreatedAt: now, UpdatedAt: now,
				}
				if err := lotRepo.Create(ctx, lot); err != nil {
					log.Fatal().Err(err).Str("lot", l.lot).Msg("crear lote")
				}
			}
		}
		log.Info().Str("establishment", est.Name).Msg("catálogo y lotes cargados")
	}

	log.Info().Msg("seed completado")
}
