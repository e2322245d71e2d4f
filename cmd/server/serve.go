package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catering-backend/internal/admin"
	"catering-backend/internal/analytics"
	"catering-backend/internal/audit"
	"catering-backend/internal/auth"
	"catering-backend/internal/engine"
	"catering-backend/internal/logger"
	"catering-backend/internal/report"
	"catering-backend/internal/storage"
	"catering-backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	migrator := store.NewMigrator(rt.store)
	if err := migrator.MigrateAll(ctx, rt.registry); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}

	created, err := rt.store.SeedAdminUser(ctx, rt.cfg.Seed.AdminUsername, rt.cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Warn("Seeded superuser, change its password", zap.String("username", rt.cfg.Seed.AdminUsername))
	}

	app := newApp(rt, logger.L())

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", rt.cfg.Server.Port)
		logger.Info("Server started", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newApp wires every route group onto a fresh fiber app.
func newApp(rt *runtime, log *zap.Logger) *fiber.App {
	cfg := rt.cfg
	files := storage.NewLocalStorage(cfg.Storage.LocalPath)
	actions := audit.NewDBRecorder(rt.store, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: engine.ErrorHandler(log),
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(accessLog(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	engine.RegisterMediaRoutes(app, engine.NewFileHandler(files))

	// Login is the only unauthenticated route.
	authHandler := auth.NewAuthHandler(rt.store, cfg.JWTSecret)
	auth.RegisterAuthRoutes(app, authHandler, rt.registry)

	authMW := auth.AuthMiddleware(cfg.JWTSecret)

	service := engine.NewService(rt.store, rt.registry, actions, log)
	engine.RegisterTableRoutes(app, engine.NewHandler(service, files, cfg.Storage.MaxFileSize, log), authMW)

	reportHandler := report.NewHandler(rt.store, rt.registry, actions, log, cfg.Report.MaxColumnWidth)
	report.RegisterRoutes(app, reportHandler, authMW)

	analytics.RegisterRoutes(app, analytics.NewHandler(analytics.NewService(rt.store, log)), authMW)

	adminHandler := admin.NewHandler(rt.store, rt.registry, store.NewMigrator(rt.store), actions)
	admin.RegisterAdminRoutes(app, adminHandler, authMW, auth.RequireSuperuser())

	return app
}

// accessLog writes one line per request after the handler chain ran.
func accessLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Render now so the logged status is the final one.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		requestID, _ := c.Locals("requestid").(string)
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID),
		)
		return nil
	}
}
