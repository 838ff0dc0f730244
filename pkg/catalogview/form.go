// Package catalogview holds the front-end state of the product catalog as
// immutable values with pure update functions.
package catalogview

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"carrito/pkg/client"

	"github.com/shopspring/decimal"
)

// Form field names, matching the API field names.
const (
	FieldCodigo      = "codigo"
	FieldNombre      = "nombre"
	FieldDescripcion = "descripcion"
	FieldPrecio      = "precio"
	FieldStock       = "stock"
	FieldCategoria   = "categoria"
	FieldImagenes    = "imagenes"
)

// Fields lists the form fields in display order.
var Fields = []string{FieldCodigo, FieldNombre, FieldDescripcion, FieldPrecio, FieldStock, FieldCategoria, FieldImagenes}

// maxPrecio mirrors the server's precio bound.
var maxPrecio = decimal.New(1, 10)

// ErrUnknownField is returned by Set for a name not in Fields.
var ErrUnknownField = errors.New("unknown form field")

// Form is the raw text typed into a product form.
type Form struct {
	Codigo      string
	Nombre      string
	Descripcion string
	Precio      string
	Stock       string
	Categoria   string
	Imagenes    string
}

// Set returns a copy of f with field set to value.
func (f Form) Set(field, value string) (Form, error) {
	switch field {
	case FieldCodigo:
		f.Codigo = value
	case FieldNombre:
		f.Nombre = value
	case FieldDescripcion:
		f.Descripcion = value
	case FieldPrecio:
		f.Precio = value
	case FieldStock:
		f.Stock = value
	case FieldCategoria:
		f.Categoria = value
	case FieldImagenes:
		f.Imagenes = value
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return f, nil
}

// Reset returns an empty form.
func (f Form) Reset() Form {
	return Form{}
}

// CreateRequest checks the fields required to add a product and normalizes
// the numeric ones. The server still has the final word on validity.
func (f Form) CreateRequest() (client.CreateRequest, error) {
	var missing []string
	for name, v := range map[string]string{
		FieldCodigo: f.Codigo, FieldNombre: f.Nombre, FieldPrecio: f.Precio, FieldStock: f.Stock,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sortFields(missing)
		return client.CreateRequest{}, fmt.Errorf("required fields missing: %s", strings.Join(missing, ", "))
	}

	precio, err := coercePrecio(f.Precio)
	if err != nil {
		return client.CreateRequest{}, err
	}
	stock, err := coerceStock(f.Stock)
	if err != nil {
		return client.CreateRequest{}, err
	}
	return client.CreateRequest{
		Codigo:      strings.TrimSpace(f.Codigo),
		Nombre:      strings.TrimSpace(f.Nombre),
		Descripcion: f.Descripcion,
		Precio:      precio,
		Stock:       stock,
		Categoria:   strings.TrimSpace(f.Categoria),
		Imagenes:    strings.TrimSpace(f.Imagenes),
	}, nil
}

// UpdateRequest builds a partial update from the non-empty fields. Codigo is
// excluded because the edit form uses it to find the product.
func (f Form) UpdateRequest() (client.UpdateRequest, error) {
	var req client.UpdateRequest
	text := func(v string) *string {
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	req.Nombre = text(f.Nombre)
	req.Descripcion = text(f.Descripcion)
	req.Categoria = text(f.Categoria)
	req.Imagenes = text(f.Imagenes)
	if strings.TrimSpace(f.Precio) != "" {
		precio, err := coercePrecio(f.Precio)
		if err != nil {
			return client.UpdateRequest{}, err
		}
		req.Precio = &precio
	}
	if strings.TrimSpace(f.Stock) != "" {
		stock, err := coerceStock(f.Stock)
		if err != nil {
			return client.UpdateRequest{}, err
		}
		req.Stock = &stock
	}
	return req, nil
}

// IsEmpty reports whether UpdateRequest would change nothing.
func IsEmpty(req client.UpdateRequest) bool {
	return req == client.UpdateRequest{}
}

func coercePrecio(raw string) (string, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("precio must be a number, got %q", raw)
	}
	if v.IsNegative() {
		return "", fmt.Errorf("precio must not be negative")
	}
	if v.Round(2).GreaterThanOrEqual(maxPrecio) {
		return "", fmt.Errorf("precio must be less than %s", maxPrecio)
	}
	return strings.TrimSpace(raw), nil
}

func coerceStock(raw string) (string, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("stock must be an integer, got %q", raw)
	}
	if v < 0 {
		return "", fmt.Errorf("stock must not be negative")
	}
	return strconv.Itoa(v), nil
}

// sortFields orders names as they appear in Fields.
func sortFields(names []string) {
	rank := make(map[string]int, len(Fields))
	for i, f := range Fields {
		rank[f] = i
	}
	sort.Slice(names, func(i, j int) bool { return rank[names[i]] < rank[names[j]] })
}
