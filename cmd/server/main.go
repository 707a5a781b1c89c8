package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/example/laconfe/internal/cache"
	"github.com/example/laconfe/internal/config"
	"github.com/example/laconfe/internal/database"
	"github.com/example/laconfe/internal/handlers"
	"github.com/example/laconfe/internal/logging"
	"github.com/example/laconfe/internal/routes"
	"github.com/example/laconfe/internal/services"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	db := database.Connect(cfg.DatabaseURL)

	deps := routes.Deps{
		Gateway: services.NewBankClient(cfg.GatewayURL, cfg.GatewayTimeout),
		Mailer:  services.LogMailer{},
	}

	if cfg.MailEnabled() {
		deps.Mailer = services.NewSMTPMailer(services.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.EmailUser,
			Password:  cfg.EmailPassword,
			FromName:  cfg.EmailFromName,
			PublicDir: cfg.PublicDir,
		})
	} else {
		log.Warn().Msg("EMAIL_USER/EMAIL_PASSWORD not set, emails will only be logged")
	}

	var closers []func() error

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		locker, err := cache.NewRedisLocker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.CallbackLockTTL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("callback lock disabled")
		} else {
			deps.Locker = locker
			closers = append(closers, locker.Close)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      "LaConfe Backend",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
	}))
	app.Static("/public", cfg.PublicDir)

	routes.Register(app, db, cfg, deps)

	go func() {
		log.Info().Str("port", cfg.AppPort).Msg("starting server")
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			log.Fatal().Err(err).Msg("fiber.Listen error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}
	shutdown(app, 10*time.Second, closers)
}

// shutdown drains the HTTP server, then releases the remaining resources in order.
func shutdown(app *fiber.App, timeout time.Duration, closers []func() error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}
