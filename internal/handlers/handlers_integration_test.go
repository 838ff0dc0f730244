package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carrito/internal/handlers"
	"carrito/internal/middleware"
	"carrito/internal/models"
	"carrito/internal/repositories"
	"carrito/internal/services"
	"carrito/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite and a local image store.
func setupApp(t *testing.T) (*fiber.App, string) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))

	uploadDir := t.TempDir()
	images, err := storage.NewLocalStore(uploadDir, "/uploads")
	require.NoError(t, err)

	productService := services.NewProductService(repositories.NewGORMProductRepository(db), nil)
	productHandler := handlers.NewProductHandler(productService, middleware.ImageUpload(images, 1<<20))

	app := fiber.New()
	productHandler.RegisterRoutes(app)
	return app, uploadDir
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// Minimal headers that content sniffing recognizes.
var (
	pngImage  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	jpegImage = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func multipartRequest(t *testing.T, method, path string, fields map[string]string, imageType string, image []byte) *http.Request {
	t.Helper()
	return multipartFileRequest(t, method, path, fields, "Foto.PNG", imageType, image)
}

func multipartFileRequest(t *testing.T, method, path string, fields map[string]string, filename, imageType string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imagen"; filename=%q`, filename))
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestProductLifecycle(t *testing.T) {
	app, _ := setupApp(t)

	// --- POST /products ---
	resp := doJSON(t, app, http.MethodPost, "/products", map[string]interface{}{
		"codigo": "P1",
		"nombre": "Widget",
		"precio": 9.99,
		"stock":  3,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[models.Product](t, resp)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "9.99", created.Precio.StringFixed(2))
	assert.False(t, created.Bloqueado)

	// --- GET /products includes it ---
	resp = doJSON(t, app, http.MethodGet, "/products", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	active := decode[[]models.Product](t, resp)
	require.Len(t, active, 1)
	assert.Equal(t, created.ID, active[0].ID)

	// --- PATCH /products/bloquear/:id ---
	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/products/bloquear/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	blocked := decode[models.Product](t, resp)
	assert.True(t, blocked.Bloqueado)

	// --- GET /products excludes it, /products/bloqueados includes it ---
	resp = doJSON(t, app, http.MethodGet, "/products", nil)
	assert.Empty(t, decode[[]models.Product](t, resp))
	resp = doJSON(t, app, http.MethodGet, "/products/bloqueados", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	blockedList := decode[[]models.Product](t, resp)
	require.Len(t, blockedList, 1)
	assert.Equal(t, created.ID, blockedList[0].ID)

	// --- blocking twice is an invalid state ---
	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/products/bloquear/%d", created.ID), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "already blocked")

	// --- PATCH /products/desbloquear/:id ---
	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/products/desbloquear/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Product](t, resp).Bloqueado)
}

func TestGetProductByID(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/products", map[string]interface{}{
		"codigo": "G1", "nombre": "Taza", "precio": "4.50", "stock": "10", "categoria": "cocina",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[models.Product](t, resp)

	resp = doJSON(t, app, http.MethodGet, fmt.Sprintf("/products/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[models.Product](t, resp)
	assert.Equal(t, "Taza", fetched.Nombre)
	assert.Equal(t, "cocina", fetched.Categoria)
	assert.Equal(t, 10, fetched.Stock)

	resp = doJSON(t, app, http.MethodGet, "/products/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])

	resp = doJSON(t, app, http.MethodGet, "/products/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListProductsByCodigo(t *testing.T) {
	app, _ := setupApp(t)
	for _, codigo := range []string{"A1", "B2"} {
		resp := doJSON(t, app, http.MethodPost, "/products", map[string]interface{}{
			"codigo": codigo, "nombre": "N", "precio": 1, "stock": 1,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, app, http.MethodGet, "/products?codigo=B2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	products := decode[[]models.Product](t, resp)
	require.Len(t, products, 1)
	assert.Equal(t, "B2", products[0].Codigo)
}

func TestCreateProductErrors(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/products", map[string]interface{}{
		"codigo": "D1", "nombre": "Uno", "precio": 1, "stock": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	tests := []struct {
		name string
		body interface{}
		msg  string
	}{
		{"duplicate codigo", map[string]interface{}{"codigo": "D1", "nombre": "Dos", "precio": 2, "stock": 2}, "already exists"},
		{"missing nombre", map[string]interface{}{"codigo": "D2", "precio": 2, "stock": 2}, "nombre is required"},
		{"negative precio", map[string]interface{}{"codigo": "D2", "nombre": "Dos", "precio": -2, "stock": 2}, "precio must not be negative"},
		{"non-numeric stock", map[string]interface{}{"codigo": "D2", "nombre": "Dos", "precio": 2, "stock": "muchos"}, "stock must be an integer"},
		{"boolean field", map[string]interface{}{"codigo": true}, "codigo must be a string or a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/products", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, decode[map[string]string](t, resp)["error"], tt.msg)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUpdateProductPartial(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodPost, "/products", map[string]interface{}{
		"codigo": "A1", "nombre": "X", "precio": 10, "stock": 5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[models.Product](t, resp)

	resp = doJSON(t, app, http.MethodPut, fmt.Sprintf("/products/%d", created.ID), map[string]interface{}{
		"precio":    12.5,
		"bloqueado": true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Product](t, resp)
	assert.Equal(t, "A1", updated.Codigo)
	assert.Equal(t, "X", updated.Nombre)
	assert.Equal(t, "12.50", updated.Precio.StringFixed(2))
	assert.Equal(t, 5, updated.Stock)
	// bloqueado only moves through block/unblock.
	assert.False(t, updated.Bloqueado)

	resp = doJSON(t, app, http.MethodPut, fmt.Sprintf("/products/%d", created.ID), map[string]interface{}{"codigo": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPut, "/products/4242", map[string]interface{}{"nombre": "Y"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateProductWithImage(t *testing.T) {
	app, uploadDir := setupApp(t)

	req := multipartRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "IMG1", "nombre": "Con foto", "precio": "3.25", "stock": "2",
	}, "image/png", pngImage)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[models.Product](t, resp)
	require.True(t, strings.HasPrefix(created.Imagenes, "/uploads/"), created.Imagenes)
	assert.True(t, strings.HasSuffix(created.Imagenes, ".png"))

	stored, err := os.ReadFile(filepath.Join(uploadDir, strings.TrimPrefix(created.Imagenes, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, pngImage, stored)

	// Update with a new image replaces imagenes, removes the old file and
	// leaves the rest untouched.
	req = multipartRequest(t, http.MethodPut, fmt.Sprintf("/products/%d", created.ID), map[string]string{}, "image/jpeg", jpegImage)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Product](t, resp)
	assert.NotEqual(t, created.Imagenes, updated.Imagenes)
	assert.True(t, strings.HasSuffix(updated.Imagenes, ".jpg"), updated.Imagenes)
	assert.Equal(t, "Con foto", updated.Nombre)

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, strings.TrimPrefix(updated.Imagenes, "/uploads/"), entries[0].Name())
}

func TestFailedUpdateKeepsPreviousImage(t *testing.T) {
	app, uploadDir := setupApp(t)

	req := multipartRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "KEEP", "nombre": "Con foto", "precio": "1", "stock": "1",
	}, "image/png", pngImage)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	created := decode[models.Product](t, resp)

	req = multipartRequest(t, http.MethodPut, fmt.Sprintf("/products/%d", created.ID), map[string]string{
		"stock": "-3",
	}, "image/jpeg", jpegImage)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, strings.TrimPrefix(created.Imagenes, "/uploads/"), entries[0].Name())
}

func TestUploadTypeComesFromContent(t *testing.T) {
	app, uploadDir := setupApp(t)

	// Script declared as a PNG under an .html name is refused.
	req := multipartFileRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "XSS", "nombre": "Malo", "precio": "1", "stock": "1",
	}, "evil.html", "image/png", []byte("<script>alert(1)</script>"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "must be an image")

	// SVG is an image type that can still carry script.
	req = multipartFileRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "SVG", "nombre": "Vector", "precio": "1", "stock": "1",
	}, "logo.svg", "image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A real PNG keeps its own extension whatever the name and declared type.
	req = multipartFileRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "PNG", "nombre": "Foto", "precio": "1", "stock": "1",
	}, "evil.html", "text/html", pngImage)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[models.Product](t, resp)
	assert.True(t, strings.HasSuffix(created.Imagenes, ".png"), created.Imagenes)
}

func TestUploadRejectedAndCleanedUp(t *testing.T) {
	app, uploadDir := setupApp(t)

	req := multipartRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "TXT", "nombre": "Texto", "precio": "1", "stock": "1",
	}, "text/plain", []byte("hola"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "must be an image")

	// A failing create removes the image it already stored.
	req = multipartRequest(t, http.MethodPost, "/products", map[string]string{
		"codigo": "BAD", "nombre": "Malo", "precio": "-1", "stock": "1",
	}, "image/png", pngImage)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
