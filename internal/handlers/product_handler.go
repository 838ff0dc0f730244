package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"carrito/internal/middleware"
	"carrito/internal/models"
	"carrito/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service *services.ProductService
	upload  fiber.Handler
}

// NewProductHandler creates a new ProductHandler. upload, when not nil, runs
// before create and update to store the optional image file.
func NewProductHandler(service *services.ProductService, upload fiber.Handler) *ProductHandler {
	return &ProductHandler{
		service: service,
		upload:  upload,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	// Registered before /:id so the literal segment wins.
	productRoutes.Get("/bloqueados", h.HandleGetBlockedProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", h.withUpload(h.HandleCreateProduct)...)
	productRoutes.Put("/:id", h.withUpload(h.HandleUpdateProduct)...)
	productRoutes.Patch("/bloquear/:id", h.HandleBlockProduct)
	productRoutes.Patch("/desbloquear/:id", h.HandleUnblockProduct)
}

func (h *ProductHandler) withUpload(handler fiber.Handler) []fiber.Handler {
	if h.upload == nil {
		return []fiber.Handler{handler}
	}
	return []fiber.Handler{h.upload, handler}
}

// HandleGetProducts lists active products, optionally narrowed by codigo or categoria.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	filter := models.ProductFilter{
		Codigo:    strings.TrimSpace(c.Query("codigo")),
		Categoria: strings.TrimSpace(c.Query("categoria")),
	}
	products, err := h.service.ListProducts(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err, "Could not retrieve products")
	}
	return c.JSON(products)
}

// HandleGetBlockedProducts lists blocked products.
func (h *ProductHandler) HandleGetBlockedProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.UserContext(), models.ProductFilter{Bloqueado: true})
	if err != nil {
		return respondError(c, err, "Could not retrieve blocked products")
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return respondError(c, err, "")
	}
	product, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Could not retrieve product")
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a product from a JSON or multipart body.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	in, err := parseProductInput(c)
	if err != nil {
		return respondError(c, err, "")
	}
	product, err := h.service.CreateProduct(c.UserContext(), in)
	if err != nil {
		return respondError(c, err, "Could not create product")
	}
	return c.JSON(product)
}

// HandleUpdateProduct applies a partial update to a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return respondError(c, err, "")
	}
	in, err := parseProductInput(c)
	if err != nil {
		return respondError(c, err, "")
	}
	var previous string
	if _, uploaded := middleware.ImagePath(c); uploaded {
		current, err := h.service.GetProduct(c.UserContext(), id)
		if err != nil {
			return respondError(c, err, "Could not update product")
		}
		previous = current.Imagenes
	}
	product, err := h.service.UpdateProduct(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err, "Could not update product")
	}
	if previous != "" {
		middleware.ReplaceImage(c, previous)
	}
	return c.JSON(product)
}

// HandleBlockProduct blocks a product.
func (h *ProductHandler) HandleBlockProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return respondError(c, err, "")
	}
	product, err := h.service.BlockProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Could not block product")
	}
	return c.JSON(product)
}

// HandleUnblockProduct unblocks a product.
func (h *ProductHandler) HandleUnblockProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return respondError(c, err, "")
	}
	product, err := h.service.UnblockProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Could not unblock product")
	}
	return c.JSON(product)
}

// respondError maps service errors to status codes. Unclassified errors are
// logged and reported with fallback as the message.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInvalidState):
		status = fiber.StatusBadRequest
	}
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Printf("Error handling %s %s: %v", c.Method(), c.Path(), err)
		if fallback != "" {
			message = fallback
		}
	}
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func invalidInput(format string, args ...interface{}) error {
	return &services.ProductError{Kind: services.ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func productID(c *fiber.Ctx) (uint, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, invalidInput("invalid product id %q", raw)
	}
	return uint(id), nil
}

var productFieldNames = []string{"codigo", "nombre", "descripcion", "precio", "stock", "categoria", "imagenes"}

// parseProductInput reads the product fields present in a JSON, multipart or
// urlencoded body. The stored upload, if any, overrides imagenes.
func parseProductInput(c *fiber.Ctx) (services.ProductInput, error) {
	values := make(map[string]string)
	contentType := c.Get(fiber.HeaderContentType)

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return services.ProductInput{}, invalidInput("invalid multipart body: %v", err)
		}
		for _, name := range productFieldNames {
			if vs, ok := form.Value[name]; ok && len(vs) > 0 {
				values[name] = vs[0]
			}
		}
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		args := c.Request().PostArgs()
		for _, name := range productFieldNames {
			if args.Has(name) {
				values[name] = string(args.Peek(name))
			}
		}
	default:
		if err := decodeJSONFields(c.Body(), values); err != nil {
			return services.ProductInput{}, err
		}
	}

	if path, ok := middleware.ImagePath(c); ok {
		values["imagenes"] = path
	}

	field := func(name string) *string {
		if v, ok := values[name]; ok {
			return &v
		}
		return nil
	}
	return services.ProductInput{
		Codigo:      field("codigo"),
		Nombre:      field("nombre"),
		Descripcion: field("descripcion"),
		Precio:      field("precio"),
		Stock:       field("stock"),
		Categoria:   field("categoria"),
		Imagenes:    field("imagenes"),
	}, nil
}

// decodeJSONFields accepts strings and numbers for every field; null counts
// as absent. Numbers keep their literal text so precio is not rounded
// through float64.
func decodeJSONFields(body []byte, values map[string]string) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return invalidInput("invalid JSON body: %v", err)
	}
	for _, name := range productFieldNames {
		switch v := raw[name].(type) {
		case nil:
		case string:
			values[name] = v
		case json.Number:
			values[name] = v.String()
		default:
			return invalidInput("%s must be a string or a number", name)
		}
	}
	return nil
}
