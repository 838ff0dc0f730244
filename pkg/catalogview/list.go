package catalogview

import (
	"context"
	"errors"

	"carrito/pkg/client"
)

// ListView is what a product list screen shows.
type ListView struct {
	Products []client.Product
	Banner   string
}

// Loaded returns a view showing products with the banner cleared.
func (v ListView) Loaded(products []client.Product) ListView {
	return ListView{Products: append([]client.Product(nil), products...)}
}

// Failed returns a view with err as the banner, keeping the current products.
func (v ListView) Failed(err error) ListView {
	v.Banner = Message(err)
	return v
}

// Dismiss clears the banner.
func (v ListView) Dismiss() ListView {
	v.Banner = ""
	return v
}

// Message is the single line shown for err.
func Message(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// RefreshFunc reloads the products a view shows.
type RefreshFunc func(ctx context.Context) ([]client.Product, error)

// Catalog runs user actions against the API and refreshes the view after
// every successful mutation.
type Catalog struct {
	api     *client.Client
	refresh RefreshFunc
}

// NewCatalog returns a Catalog refreshing with refresh, or with the active
// product listing when refresh is nil.
func NewCatalog(api *client.Client, refresh RefreshFunc) *Catalog {
	if refresh == nil {
		refresh = api.List
	}
	return &Catalog{api: api, refresh: refresh}
}

// Refresh reloads view.
func (c *Catalog) Refresh(ctx context.Context, view ListView) ListView {
	products, err := c.refresh(ctx)
	if err != nil {
		return view.Failed(err)
	}
	return view.Loaded(products)
}

// Add creates a product from form. On success it returns the reset form and
// the refreshed view; on failure the form is kept and the view carries the
// error banner.
func (c *Catalog) Add(ctx context.Context, view ListView, form Form) (ListView, Form) {
	req, err := form.CreateRequest()
	if err != nil {
		return view.Failed(err), form
	}
	if _, err := c.api.Create(ctx, req); err != nil {
		return view.Failed(err), form
	}
	return c.Refresh(ctx, view), form.Reset()
}

// Edit looks the product up by form.Codigo and applies the other non-empty
// fields to it.
func (c *Catalog) Edit(ctx context.Context, view ListView, form Form) (ListView, Form) {
	if form.Codigo == "" {
		return view.Failed(errors.New("codigo is required to update a product")), form
	}
	req, err := form.UpdateRequest()
	if err != nil {
		return view.Failed(err), form
	}
	product, err := c.api.FindByCodigo(ctx, form.Codigo)
	if err != nil {
		return view.Failed(err), form
	}
	if _, err := c.api.Update(ctx, product.ID, req); err != nil {
		return view.Failed(err), form
	}
	return c.Refresh(ctx, view), form.Reset()
}

// Block blocks product id.
func (c *Catalog) Block(ctx context.Context, view ListView, id uint) ListView {
	if _, err := c.api.Block(ctx, id); err != nil {
		return view.Failed(err)
	}
	return c.Refresh(ctx, view)
}

// Unblock unblocks product id.
func (c *Catalog) Unblock(ctx context.Context, view ListView, id uint) ListView {
	if _, err := c.api.Unblock(ctx, id); err != nil {
		return view.Failed(err)
	}
	return c.Refresh(ctx, view)
}
