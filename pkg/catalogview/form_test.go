package catalogview_test

import (
	"testing"

	"carrito/pkg/catalogview"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, values map[string]string) catalogview.Form {
	t.Helper()
	var f catalogview.Form
	for k, v := range values {
		var err error
		f, err = f.Set(k, v)
		require.NoError(t, err)
	}
	return f
}

func TestFormSetIsImmutable(t *testing.T) {
	empty := catalogview.Form{}
	f, err := empty.Set(catalogview.FieldNombre, "Widget")
	require.NoError(t, err)
	assert.Equal(t, "Widget", f.Nombre)
	assert.Equal(t, "", empty.Nombre)

	_, err = f.Set("color", "rojo")
	assert.ErrorIs(t, err, catalogview.ErrUnknownField)

	assert.Equal(t, catalogview.Form{}, f.Reset())
}

func TestFormCreateRequest(t *testing.T) {
	f := fill(t, map[string]string{
		"codigo": " P1 ", "nombre": "Widget", "precio": "9.99", "stock": "03", "categoria": "varios",
	})
	req, err := f.CreateRequest()
	require.NoError(t, err)
	assert.Equal(t, "P1", req.Codigo)
	assert.Equal(t, "9.99", req.Precio)
	assert.Equal(t, "3", req.Stock)
	assert.Equal(t, "varios", req.Categoria)
}

func TestFormCreateRequestRejects(t *testing.T) {
	_, err := fill(t, map[string]string{"nombre": "X"}).CreateRequest()
	assert.EqualError(t, err, "required fields missing: codigo, precio, stock")

	_, err = fill(t, map[string]string{"codigo": "C", "nombre": "X", "precio": "diez", "stock": "1"}).CreateRequest()
	assert.ErrorContains(t, err, "precio must be a number")

	for _, precio := range []string{"NaN", "Inf", "-Inf", "0x1p4"} {
		_, err = fill(t, map[string]string{"codigo": "C", "nombre": "X", "precio": precio, "stock": "1"}).CreateRequest()
		assert.ErrorContains(t, err, "precio must be a number", precio)
	}

	_, err = fill(t, map[string]string{"codigo": "C", "nombre": "X", "precio": "1e12", "stock": "1"}).CreateRequest()
	assert.ErrorContains(t, err, "precio must be less than")

	_, err = fill(t, map[string]string{"codigo": "C", "nombre": "X", "precio": "1", "stock": "-1"}).CreateRequest()
	assert.ErrorContains(t, err, "stock must not be negative")

	_, err = fill(t, map[string]string{"codigo": "C", "nombre": "X", "precio": "1", "stock": "1.5"}).CreateRequest()
	assert.ErrorContains(t, err, "stock must be an integer")
}

func TestFormUpdateRequestOnlyFilledFields(t *testing.T) {
	req, err := fill(t, map[string]string{"codigo": "A1", "precio": "12"}).UpdateRequest()
	require.NoError(t, err)
	require.NotNil(t, req.Precio)
	assert.Equal(t, "12", *req.Precio)
	assert.Nil(t, req.Codigo)
	assert.Nil(t, req.Nombre)
	assert.Nil(t, req.Stock)
	assert.False(t, catalogview.IsEmpty(req))

	req, err = fill(t, map[string]string{"codigo": "A1"}).UpdateRequest()
	require.NoError(t, err)
	assert.True(t, catalogview.IsEmpty(req))

	_, err = fill(t, map[string]string{"stock": "x"}).UpdateRequest()
	assert.Error(t, err)
}
