package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/laconfe/internal/config"
	"github.com/example/laconfe/internal/handlers"
	"github.com/example/laconfe/internal/middleware"
	"github.com/example/laconfe/internal/services"
)

// Deps are the outbound collaborators the routes need beyond the database.
type Deps struct {
	Gateway services.BankGateway
	Mailer  services.Mailer
	// Locker is optional.
	Locker services.CallbackLocker
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, deps Deps) {
	payments := services.NewPaymentStore(db)
	ledger := services.NewLedgerService(db)
	accounts := services.NewAccountService(db, deps.Mailer, cfg.JWTSecret, cfg.TokenExpires, cfg.FrontendURL)
	registration := services.NewRegistrationService(deps.Gateway, payments, accounts, services.GatewayCredentials{
		Username: cfg.GatewayUsername,
		Password: cfg.GatewayPassword,
	})
	callbacks := services.NewCallbackService(payments, ledger, accounts, deps.Mailer, deps.Locker)
	installments := services.NewInstallmentService(payments)

	paymentHandler := handlers.NewPaymentHandler(registration, callbacks, payments, installments)
	catalogHandler := handlers.NewCatalogHandler(ledger)
	authHandler := handlers.NewAuthHandler(accounts)
	resetHandler := handlers.NewPasswordResetHandler(accounts)

	app.Get("/health", handlers.Health(db))
	app.Get("/rooms", catalogHandler.ListRooms)

	api := app.Group("/api")

	// Checkout and bank callbacks
	api.Post("/register", paymentHandler.Register)
	api.Post("/payment/callback", paymentHandler.Callback)
	api.Get("/payment/callback", paymentHandler.Callback)
	api.Get("/payment", paymentHandler.GetPayment)
	api.Get("/user-payment", paymentHandler.ListUserPayments)
	api.Get("/payments/next-due/:userId", paymentHandler.NextDue)

	api.Get("/promo", catalogHandler.GetPromo)

	// Accounts
	api.Post("/user", authHandler.CreateUser)
	api.Post("/login", authHandler.Login)
	api.Get("/me", middleware.AuthMiddleware(cfg), authHandler.Me)

	auth := api.Group("/auth")
	auth.Post("/request-reset", resetHandler.RequestReset)
	auth.Post("/reset-password", resetHandler.ResetPassword)
}
