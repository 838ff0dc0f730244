package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"carrito/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	products map[uint]models.Product
	nextID   uint
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[uint]models.Product),
		nextID:   1,
	}
}

// List returns the products matching filter, ordered by id.
func (r *MemoryProductRepository) List(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if p.Bloqueado != filter.Bloqueado {
			continue
		}
		if filter.Codigo != "" && p.Codigo != filter.Codigo {
			continue
		}
		if filter.Categoria != "" && p.Categoria != filter.Categoria {
			continue
		}
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].ID < productList[j].ID })
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MemoryProductRepository) GetByID(_ context.Context, id uint) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d: %w", id, ErrProductNotFound)
	}
	return &product, nil
}

// GetByCodigo returns a product by its code.
func (r *MemoryProductRepository) GetByCodigo(_ context.Context, codigo string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if p.Codigo == codigo {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("product with code %q: %w", codigo, ErrProductNotFound)
}

// Create adds a new product and assigns its ID.
func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.codigoTaken(product.Codigo, 0) {
		return fmt.Errorf("product code %q: %w", product.Codigo, ErrDuplicateCodigo)
	}
	now := time.Now()
	product.ID = r.nextID
	product.CreatedAt = now
	product.UpdatedAt = now
	r.nextID++
	r.products[product.ID] = *product
	return nil
}

// Update applies the given column values to an existing product.
func (r *MemoryProductRepository) Update(_ context.Context, id uint, fields map[string]interface{}) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product with ID %d not updated: %w", id, ErrProductNotFound)
	}
	for column, value := range fields {
		if err := setColumn(&product, column, value); err != nil {
			return nil, err
		}
	}
	if r.codigoTaken(product.Codigo, id) {
		return nil, fmt.Errorf("product code %q: %w", product.Codigo, ErrDuplicateCodigo)
	}
	if len(fields) > 0 {
		product.UpdatedAt = time.Now()
	}
	r.products[id] = product
	return &product, nil
}

// codigoTaken reports whether a product other than except already uses codigo.
// Callers must hold r.mu.
func (r *MemoryProductRepository) codigoTaken(codigo string, except uint) bool {
	for id, p := range r.products {
		if id != except && p.Codigo == codigo {
			return true
		}
	}
	return false
}

func setColumn(p *models.Product, column string, value interface{}) error {
	var ok bool
	switch column {
	case "codigo":
		p.Codigo, ok = value.(string)
	case "nombre":
		p.Nombre, ok = value.(string)
	case "descripcion":
		p.Descripcion, ok = value.(string)
	case "categoria":
		p.Categoria, ok = value.(string)
	case "imagenes":
		p.Imagenes, ok = value.(string)
	case "precio":
		p.Precio, ok = value.(decimal.Decimal)
	case "stock":
		p.Stock, ok = value.(int)
	case "bloqueado":
		p.Bloqueado, ok = value.(bool)
	default:
		return fmt.Errorf("unknown product column %q", column)
	}
	if !ok {
		return fmt.Errorf("invalid value %v for product column %q", value, column)
	}
	return nil
}
