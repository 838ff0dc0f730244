package repositories

import (
	"context"
	"errors"
	"fmt"

	"carrito/internal/models"

	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
// The *gorm.DB should be opened with TranslateError enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

// List retrieves the products matching filter, ordered by id.
func (r *GORMProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	products := make([]models.Product, 0)
	q := r.db.WithContext(ctx).Where("bloqueado = ?", filter.Bloqueado)
	if filter.Codigo != "" {
		q = q.Where("codigo = ?", filter.Codigo)
	}
	if filter.Categoria != "" {
		q = q.Where("categoria = ?", filter.Categoria)
	}
	if err := q.Order("id").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by ID %d: %w", id, err)
	}
	return &product, nil
}

// GetByCodigo retrieves a single product by its unique code.
func (r *GORMProductRepository) GetByCodigo(ctx context.Context, codigo string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "codigo = ?", codigo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product with code %q: %w", codigo, ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product by code %q: %w", codigo, err)
	}
	return &product, nil
}

// Create inserts a new product; the database assigns its ID.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("product code %q: %w", product.Codigo, ErrDuplicateCodigo)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update writes only the given columns, so zero values such as stock=0 or
// bloqueado=false are stored as well.
func (r *GORMProductRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) (*models.Product, error) {
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("product code %v: %w", fields["codigo"], ErrDuplicateCodigo)
		}
		return nil, fmt.Errorf("failed to update product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("product with ID %d not updated: %w", id, ErrProductNotFound)
	}
	return r.GetByID(ctx, id)
}
