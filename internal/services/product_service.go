package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"carrito/internal/models"
	"carrito/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Product events published after successful mutations.
const (
	EventProductCreated   = "product.created"
	EventProductUpdated   = "product.updated"
	EventProductBlocked   = "product.blocked"
	EventProductUnblocked = "product.unblocked"
)

// EventPublisher delivers product events to interested consumers.
type EventPublisher interface {
	PublishProductEvent(event string, payload map[string]interface{}) error
}

// ProductInput carries raw, not yet coerced field values. A nil field is
// absent from the request.
type ProductInput struct {
	Codigo      *string
	Nombre      *string
	Descripcion *string
	Precio      *string
	Stock       *string
	Categoria   *string
	Imagenes    *string
}

// productFields holds the text fields checked by struct tags.
type productFields struct {
	Codigo    string `validate:"required,max=64"`
	Nombre    string `validate:"required,max=255"`
	Categoria string `validate:"max=128"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	events   EventPublisher
	validate *validator.Validate
}

// NewProductService creates a new ProductService. events may be nil, in which
// case no product events are published.
func NewProductService(repo repositories.ProductRepository, events EventPublisher) *ProductService {
	return &ProductService{
		repo:     repo,
		events:   events,
		validate: validator.New(),
	}
}

// ListProducts returns the products matching filter.
func (s *ProductService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	return s.repo.List(ctx, filter)
}

// GetProduct retrieves a single product by its ID.
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil, newError(ErrNotFound, "product %d not found", id)
		}
		return nil, err
	}
	return product, nil
}

// CreateProduct validates in and stores a new, unblocked product.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	fields := productFields{
		Codigo:    trimmed(in.Codigo),
		Nombre:    trimmed(in.Nombre),
		Categoria: trimmed(in.Categoria),
	}
	if err := s.checkFields(fields, "Codigo"); err != nil {
		return nil, err
	}
	if err := s.ensureCodigoFree(ctx, fields.Codigo, 0); err != nil {
		return nil, err
	}
	if err := s.checkFields(fields); err != nil {
		return nil, err
	}
	if isBlank(in.Precio) {
		return nil, newError(ErrInvalidInput, "precio is required")
	}
	if isBlank(in.Stock) {
		return nil, newError(ErrInvalidInput, "stock is required")
	}
	precio, err := parsePrecio(*in.Precio)
	if err != nil {
		return nil, err
	}
	stock, err := parseStock(*in.Stock)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Codigo:      fields.Codigo,
		Nombre:      fields.Nombre,
		Descripcion: valueOf(in.Descripcion),
		Precio:      precio,
		Stock:       stock,
		Categoria:   fields.Categoria,
		Imagenes:    valueOf(in.Imagenes),
		Bloqueado:   false,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrDuplicateCodigo) {
			return nil, newError(ErrConflict, "product code %q already exists", product.Codigo)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.publish(EventProductCreated, product)
	return product, nil
}

// UpdateProduct applies the fields present in in to product id. Fields absent
// from in are left untouched, and bloqueado is never changed here.
func (s *ProductService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	var fields productFields
	var present []string
	if in.Codigo != nil {
		fields.Codigo = trimmed(in.Codigo)
		present = append(present, "Codigo")
	}
	if in.Nombre != nil {
		fields.Nombre = trimmed(in.Nombre)
		present = append(present, "Nombre")
	}
	if in.Categoria != nil {
		fields.Categoria = trimmed(in.Categoria)
		present = append(present, "Categoria")
	}
	if len(present) > 0 {
		if err := s.checkFields(fields, present...); err != nil {
			return nil, err
		}
	}

	if in.Codigo != nil {
		if fields.Codigo != current.Codigo {
			if err := s.ensureCodigoFree(ctx, fields.Codigo, id); err != nil {
				return nil, err
			}
		}
		updates["codigo"] = fields.Codigo
	}
	if in.Nombre != nil {
		updates["nombre"] = fields.Nombre
	}
	if in.Categoria != nil {
		updates["categoria"] = fields.Categoria
	}
	if in.Descripcion != nil {
		updates["descripcion"] = *in.Descripcion
	}
	if in.Imagenes != nil {
		updates["imagenes"] = *in.Imagenes
	}
	if in.Precio != nil {
		precio, err := parsePrecio(*in.Precio)
		if err != nil {
			return nil, err
		}
		updates["precio"] = precio
	}
	if in.Stock != nil {
		stock, err := parseStock(*in.Stock)
		if err != nil {
			return nil, err
		}
		updates["stock"] = stock
	}

	if len(updates) == 0 {
		return current, nil
	}
	product, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, s.classifyWriteError(err, id, fields.Codigo)
	}

	s.publish(EventProductUpdated, product)
	return product, nil
}

// BlockProduct marks an active product as blocked.
func (s *ProductService) BlockProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.setBlocked(ctx, id, true)
}

// UnblockProduct restores a blocked product.
func (s *ProductService) UnblockProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.setBlocked(ctx, id, false)
}

func (s *ProductService) setBlocked(ctx context.Context, id uint, blocked bool) (*models.Product, error) {
	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Bloqueado == blocked {
		if blocked {
			return nil, newError(ErrInvalidState, "product %d is already blocked", id)
		}
		return nil, newError(ErrInvalidState, "product %d is not blocked", id)
	}

	product, err := s.repo.Update(ctx, id, map[string]interface{}{"bloqueado": blocked})
	if err != nil {
		return nil, s.classifyWriteError(err, id, "")
	}

	event := EventProductUnblocked
	if blocked {
		event = EventProductBlocked
	}
	s.publish(event, product)
	return product, nil
}

// ensureCodigoFree fails with ErrConflict when codigo belongs to a product
// other than except.
func (s *ProductService) ensureCodigoFree(ctx context.Context, codigo string, except uint) error {
	existing, err := s.repo.GetByCodigo(ctx, codigo)
	if err != nil {
		if errors.Is(err, repositories.ErrProductNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check product code: %w", err)
	}
	if existing.ID != except {
		return newError(ErrConflict, "product code %q already exists", codigo)
	}
	return nil
}

func (s *ProductService) classifyWriteError(err error, id uint, codigo string) error {
	switch {
	case errors.Is(err, repositories.ErrProductNotFound):
		return newError(ErrNotFound, "product %d not found", id)
	case errors.Is(err, repositories.ErrDuplicateCodigo):
		return newError(ErrConflict, "product code %q already exists", codigo)
	default:
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
}

// checkFields runs the struct tag rules, restricted to names when given.
func (s *ProductService) checkFields(fields productFields, names ...string) error {
	var err error
	if len(names) > 0 {
		err = s.validate.StructPartial(fields, names...)
	} else {
		err = s.validate.Struct(fields)
	}
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return newError(ErrInvalidInput, "invalid product: %v", err)
	}
	e := validationErrors[0]
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return newError(ErrInvalidInput, "%s is required", field)
	case "max":
		return newError(ErrInvalidInput, "%s must be at most %s characters", field, e.Param())
	default:
		return newError(ErrInvalidInput, "%s failed on the '%s' rule", field, e.Tag())
	}
}

func (s *ProductService) publish(event string, product *models.Product) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"event":     event,
		"id":        product.ID,
		"codigo":    product.Codigo,
		"bloqueado": product.Bloqueado,
	}
	if err := s.events.PublishProductEvent(event, payload); err != nil {
		log.Printf("Warning: failed to publish %s event for product %d: %v", event, product.ID, err)
	}
}

// maxPrecio is the exclusive upper bound of precio, set by its decimal(12,2) column.
var maxPrecio = decimal.New(1, 10)

// parsePrecio accepts any non-negative decimal and rounds it to cents.
func parsePrecio(raw string) (decimal.Decimal, error) {
	precio, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, newError(ErrInvalidInput, "precio must be a number, got %q", raw)
	}
	if precio.IsNegative() {
		return decimal.Decimal{}, newError(ErrInvalidInput, "precio must not be negative")
	}
	precio = precio.Round(2)
	if precio.GreaterThanOrEqual(maxPrecio) {
		return decimal.Decimal{}, newError(ErrInvalidInput, "precio must be less than %s", maxPrecio)
	}
	return precio, nil
}

// parseStock accepts whole, non-negative numbers, including forms like "3.0".
func parseStock(raw string) (int, error) {
	stock, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !stock.IsInteger() {
		return 0, newError(ErrInvalidInput, "stock must be an integer, got %q", raw)
	}
	if stock.IsNegative() {
		return 0, newError(ErrInvalidInput, "stock must not be negative")
	}
	if stock.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0, newError(ErrInvalidInput, "stock is too large")
	}
	return int(stock.IntPart()), nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func isBlank(s *string) bool {
	return trimmed(s) == ""
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
