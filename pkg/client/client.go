// Package client is an HTTP client for the carrito product API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"carrito/internal/models"
)

// Product is the product representation returned by the API.
type Product = models.Product

// APIError is a non-2xx response, carrying the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// CreateRequest is the body of a create call. Precio and Stock are sent as
// text so the server decides how to coerce them.
type CreateRequest struct {
	Codigo      string `json:"codigo"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion,omitempty"`
	Precio      string `json:"precio"`
	Stock       string `json:"stock"`
	Categoria   string `json:"categoria,omitempty"`
	Imagenes    string `json:"imagenes,omitempty"`
}

// UpdateRequest is a partial update; nil fields are not sent.
type UpdateRequest struct {
	Codigo      *string `json:"codigo,omitempty"`
	Nombre      *string `json:"nombre,omitempty"`
	Descripcion *string `json:"descripcion,omitempty"`
	Precio      *string `json:"precio,omitempty"`
	Stock       *string `json:"stock,omitempty"`
	Categoria   *string `json:"categoria,omitempty"`
	Imagenes    *string `json:"imagenes,omitempty"`
}

// Image is a file attached to a create or update call.
type Image struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// Client talks to the product API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the API served at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns the active products.
func (c *Client) List(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.do(ctx, http.MethodGet, "/products", nil, "", &out)
	return out, err
}

// ListBlocked returns the blocked products.
func (c *Client) ListBlocked(ctx context.Context) ([]Product, error) {
	var out []Product
	err := c.do(ctx, http.MethodGet, "/products/bloqueados", nil, "", &out)
	return out, err
}

// FindByCodigo returns the active product with the given code.
func (c *Client) FindByCodigo(ctx context.Context, codigo string) (*Product, error) {
	var out []Product
	path := "/products?codigo=" + url.QueryEscape(codigo)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &APIError{Status: http.StatusNotFound, Message: fmt.Sprintf("no product with code %q", codigo)}
	}
	return &out[0], nil
}

// Get returns a product by id.
func (c *Client) Get(ctx context.Context, id uint) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds a product.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	return c.sendJSON(ctx, http.MethodPost, "/products", req)
}

// CreateWithImage adds a product, uploading img as a multipart file.
func (c *Client) CreateWithImage(ctx context.Context, req CreateRequest, img Image) (*Product, error) {
	fields := map[string]string{
		"codigo":      req.Codigo,
		"nombre":      req.Nombre,
		"descripcion": req.Descripcion,
		"precio":      req.Precio,
		"stock":       req.Stock,
		"categoria":   req.Categoria,
	}
	return c.sendMultipart(ctx, http.MethodPost, "/products", fields, img)
}

// Update applies a partial update to product id.
func (c *Client) Update(ctx context.Context, id uint, req UpdateRequest) (*Product, error) {
	return c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), req)
}

// UpdateWithImage applies a partial update and replaces the product image.
func (c *Client) UpdateWithImage(ctx context.Context, id uint, req UpdateRequest, img Image) (*Product, error) {
	fields := make(map[string]string)
	set := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}
	set("codigo", req.Codigo)
	set("nombre", req.Nombre)
	set("descripcion", req.Descripcion)
	set("precio", req.Precio)
	set("stock", req.Stock)
	set("categoria", req.Categoria)
	return c.sendMultipart(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), fields, img)
}

// Block blocks product id.
func (c *Client) Block(ctx context.Context, id uint) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/products/bloquear/%d", id), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unblock unblocks product id.
func (c *Client) Unblock(ctx context.Context, id uint) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/products/desbloquear/%d", id), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body interface{}) (*Product, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var out Product
	if err := c.do(ctx, method, path, bytes.NewReader(payload), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) sendMultipart(ctx context.Context, method, path string, fields map[string]string, img Image) (*Product, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		if value == "" && name != "codigo" && name != "nombre" {
			continue
		}
		if err := w.WriteField(name, value); err != nil {
			return nil, err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imagen"; filename=%q`, filepath.Base(img.Filename)))
	h.Set("Content-Type", img.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, img.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out Product
	if err := c.do(ctx, method, path, &buf, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeError turns a non-2xx response into an *APIError, falling back to
// the status text when the body carries no error message.
func decodeError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}
