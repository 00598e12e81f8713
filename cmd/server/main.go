package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drivehub/backend/internal/config"
	"github.com/drivehub/backend/internal/database"
	"github.com/drivehub/backend/internal/handlers"
	"github.com/drivehub/backend/internal/middleware"
	"github.com/drivehub/backend/internal/services"
	"github.com/drivehub/backend/internal/storage"
	"github.com/drivehub/backend/pkg/logger"
	"github.com/drivehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.SessionTTL, cfg.JWT.RefreshTTL)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	hierarchy := services.DefaultHierarchy()
	authorizer, err := services.NewAuthorizer(db, hierarchy, services.DefaultActionRoles())
	if err != nil {
		log.Fatalf("authorizer configuration invalid: %v", err)
	}

	shareService := services.NewShareService(db)
	presignService := services.NewPresignService(db, store, cfg.Presign.UploadTTL, cfg.Presign.DownloadTTL)
	googleProvider := services.NewGoogleProvider(cfg.OAuth)

	authHandler := handlers.NewAuthHandler(db, googleProvider)
	filesHandler := handlers.NewFilesHandler(db, authorizer, presignService)
	foldersHandler := handlers.NewFoldersHandler(db, authorizer)
	sharesHandler := handlers.NewSharesHandler(db, authorizer, shareService)
	adminHandler := handlers.NewAdminHandler(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigin))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	authRoutes := app.Group("/auth")
	authRoutes.Post("/dev-login", authHandler.DevLogin)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/oauth/:provider", authHandler.OAuthRedirect)
	authRoutes.Get("/oauth/:provider/callback", authHandler.OAuthCallback)
	authRoutes.Get("/me", middleware.RequireAuth, authHandler.Me)

	fileRoutes := app.Group("/files", middleware.RequireAuth)
	fileRoutes.Post("/presign-upload", filesHandler.PresignUpload)
	fileRoutes.Post("/complete", filesHandler.CompleteUpload)
	fileRoutes.Post("/:id/presign-download", filesHandler.PresignDownload)
	fileRoutes.Patch("/:id", filesHandler.Update)
	fileRoutes.Delete("/:id", filesHandler.Delete)

	folderRoutes := app.Group("/folders", middleware.RequireAuth)
	folderRoutes.Get("/:id/children", foldersHandler.Children)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Patch("/:id", foldersHandler.Update)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	shareRoutes := app.Group("/shares")
	shareRoutes.Post("/", middleware.RequireAuth, sharesHandler.Create)
	shareRoutes.Post("/:token/resolve", sharesHandler.Resolve)
	shareRoutes.Delete("/:id", middleware.RequireAuth, sharesHandler.Revoke)

	adminRoutes := app.Group("/admin", middleware.RequireAuth, middleware.RequireRole(hierarchy, "admin"))
	adminRoutes.Get("/health", adminHandler.Health)
	adminRoutes.Post("/reindex", adminHandler.Reindex)

	listenAddr := ":" + cfg.Server.Port

	logger.Info("server_starting", map[string]interface{}{
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
