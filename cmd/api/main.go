package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/dfarias/farmacia-api/internal/application/auth"
	"github.com/dfarias/farmacia-api/internal/application/catalog"
	appexchange "github.com/dfarias/farmacia-api/internal/application/exchange"
	"github.com/dfarias/farmacia-api/internal/infrastructure/cache"
	infrapdf "github.com/dfarias/farmacia-api/internal/infrastructure/pdf"
	"github.com/dfarias/farmacia-api/internal/infrastructure/postgres"
	httpRouter "github.com/dfarias/farmacia-api/internal/interfaces/http"
	"github.com/dfarias/farmacia-api/pkg/config"
	"github.com/dfarias/farmacia-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	exchangeRepo := postgres.NewExchangeRepository(pool)
	establishmentRepo := postgres.NewEstablishmentRepository(pool)
	lotRepo := postgres.NewStockLotRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	paymentRepo := postgres.NewExchangePaymentRepository(pool)
	movementRepo := postgres.NewStockMovementRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Idempotencia de acciones: Redis si está configurado; sin Redis las
	// acciones siguen protegidas por la transacción y la guarda de estado.
	var idemStore appexchange.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisStore, err := cache.NewRedisIdempotencyStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer redisStore.Close()
		idemStore = redisStore
		log.Info().Str("addr", cfg.Redis.Addr).Msg("store de idempotencia en Redis")
	}

	exchangeUC := appexchange.NewExchangeUseCase(
		txRunner, exchangeRepo, establishmentRepo, lotRepo, productRepo, paymentRepo,
		movementRepo, idemStore, log,
	)
	voucherUC := appexchange.NewVoucherUseCase(
		exchangeRepo, establishmentRepo, paymentRepo,
		infrapdf.NewMarotoVoucherGenerator(),
	)
	catalogUC := catalog.NewCatalogUseCase(establishmentRepo, lotRepo, productRepo)
	authUC := auth.NewAuthUseCase(userRepo, establishmentRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    cfg.App.Name,
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		ExchangeUC: exchangeUC,
		VoucherUC:  voucherUC,
		CatalogUC:  catalogUC,
		AuthUC:     authUC,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
