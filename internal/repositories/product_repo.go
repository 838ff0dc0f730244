package repositories

import (
	"context"
	"errors"

	"carrito/internal/models"
)

var (
	// ErrProductNotFound is returned when no product matches the given id or code.
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateCodigo is returned when a write would break codigo uniqueness.
	ErrDuplicateCodigo = errors.New("duplicate product code")
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	GetByCodigo(ctx context.Context, codigo string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// Update applies the given column values to the product and returns the stored result.
	Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.Product, error)
}
