package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dfarias/farmacia-api/internal/application/auth"
	"github.com/dfarias/farmacia-api/internal/application/catalog"
	appexchange "github.com/dfarias/farmacia-api/internal/application/exchange"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ExchangeUC *appexchange.ExchangeUseCase
	VoucherUC  *appexchange.VoucherUseCase
	CatalogUC  *catalog.CatalogUseCase
	AuthUC     *auth.AuthUseCase
	JWTSecret  string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Intercambios. El contrato es acción-céntrico: PUT /api/exchanges lleva
	// {id, action, ...payload} en el body, no un verbo por acción.
	exchanges := protected.Group("/exchanges")
	exchangeHandler := NewExchangeHandler(deps.ExchangeUC, deps.VoucherUC)
	exchanges.Get("/", exchangeHandler.List)
	exchanges.Post("/", exchangeHandler.Create)
	exchanges.Put("/", exchangeHandler.Action)
	exchanges.Delete("/", exchangeHandler.Delete)
	exchanges.Get("/reference/:reference", exchangeHandler.GetByReference)
	exchanges.Get("/:id", exchangeHandler.GetByID)
	exchanges.Delete("/:id", exchangeHandler.Delete)
	exchanges.Get("/:id/pdf", exchangeHandler.VoucherPDF)
	exchanges.Get("/:id/movements", exchangeHandler.Movements)

	// Directorio y catálogos
	catalogHandler := NewCatalogHandler(deps.CatalogUC)
	establishments := protected.Group("/establishments")
	establishments.Get("/", catalogHandler.SearchEstablishments)
	establishments.Get("/:id", catalogHandler.GetEstablishment)

	lots := protected.Group("/stock-lots")
	lots.Get("/", catalogHandler.SearchStockLots)

	products := protected.Group("/products")
	products.Get("/", catalogHandler.SearchProducts)
	products.Post("/", RequireRole("admin", "pharmacist"), catalogHandler.CreateProduct)
}
