// Package app wires the product catalog HTTP application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"carrito/internal/config"
	"carrito/internal/handlers"
	"carrito/internal/middleware"
	"carrito/internal/models"
	"carrito/internal/repositories"
	"carrito/internal/services"
	"carrito/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// UploadsPrefix is the public path locally stored images are served under.
const UploadsPrefix = "/uploads"

// OpenRepository opens the configured product store and migrates its schema.
// The "memory" driver keeps products in process memory only.
func OpenRepository(cfg config.Config) (repositories.ProductRepository, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "memory":
		return repositories.NewMemoryProductRepository(), nil
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseURL)
	case "postgres", "":
		dialector = postgres.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return repositories.NewGORMProductRepository(db), nil
}

// OpenImageStore builds the configured image store.
func OpenImageStore(ctx context.Context, cfg config.Config) (storage.ImageStore, error) {
	switch cfg.ImageStore {
	case "minio":
		return storage.NewMinioStore(ctx, cfg.Minio)
	case "local", "":
		return storage.NewLocalStore(cfg.UploadDir, UploadsPrefix)
	default:
		return nil, fmt.Errorf("unsupported IMAGE_STORE %q", cfg.ImageStore)
	}
}

// New builds the Fiber app. events may be nil.
func New(cfg config.Config, repo repositories.ProductRepository, images storage.ImageStore, events services.EventPublisher) *fiber.App {
	bodyLimit := 4 << 20
	if limit := int(cfg.UploadMaxBytes) + 1<<20; limit > bodyLimit {
		bodyLimit = limit
	}

	app := fiber.New(fiber.Config{
		AppName:      "carrito",
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	if local, ok := images.(*storage.LocalStore); ok {
		app.Static(UploadsPrefix, local.Dir)
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("API Carrito funcionando")
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	productService := services.NewProductService(repo, events)
	var upload fiber.Handler
	if images != nil {
		upload = middleware.ImageUpload(images, cfg.UploadMaxBytes)
	}
	handlers.NewProductHandler(productService, upload).RegisterRoutes(app)

	return app
}

// errorHandler renders errors that escape a handler as {"error": message}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
