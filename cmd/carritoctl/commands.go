package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"carrito/pkg/catalogview"
	"carrito/pkg/client"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	estadoFlag = "estado"
	imagenFlag = "imagen"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetDefault("CARRITO_API_URL", "http://localhost:3001")
	v.AutomaticEnv()

	api := func() *client.Client {
		return client.New(v.GetString("CARRITO_API_URL"))
	}

	root := &cobra.Command{
		Use:           "carritoctl",
		Short:         "Manage the product catalog",
		Long:          "List, add, edit, block and unblock catalog products.\nThe API address is read from CARRITO_API_URL.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newListCommand(api),
		newGetCommand(api),
		newAddCommand(api),
		newEditCommand(api),
		newBlockCommand(api, true),
		newBlockCommand(api, false),
	)
	return root
}

func newListCommand(api func() *client.Client) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		estadoFlag: &cobraflags.StringFlag{
			Name:  estadoFlag,
			Value: "activos",
			Usage: "Which products to list (activos, bloqueados)",
		},
		catalogview.FieldCodigo: &cobraflags.StringFlag{
			Name:  catalogview.FieldCodigo,
			Value: "",
			Usage: "Only the active product with this code",
		},
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := api()
			var refresh catalogview.RefreshFunc
			codigo := flags[catalogview.FieldCodigo].GetString()
			switch estado := flags[estadoFlag].GetString(); {
			case codigo != "":
				refresh = func(ctx context.Context) ([]client.Product, error) {
					p, err := c.FindByCodigo(ctx, codigo)
					if err != nil {
						return nil, err
					}
					return []client.Product{*p}, nil
				}
			case estado == "bloqueados":
				refresh = c.ListBlocked
			case estado == "activos":
				refresh = c.List
			default:
				return fmt.Errorf("unknown estado %q (use activos or bloqueados)", estado)
			}
			view := catalogview.NewCatalog(c, refresh).Refresh(cmd.Context(), catalogview.ListView{})
			return render(cmd.OutOrStdout(), view)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newGetCommand(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := api().Get(cmd.Context(), id)
			if err != nil {
				return errors.New(catalogview.Message(err))
			}
			return render(cmd.OutOrStdout(), catalogview.ListView{}.Loaded([]client.Product{*p}))
		},
	}
}

// formFlags holds the product form flags of add and edit.
type formFlags struct {
	values map[string]*string
	imagen string
}

func registerFormFlags(cmd *cobra.Command) *formFlags {
	ff := &formFlags{values: make(map[string]*string, len(catalogview.Fields))}
	for _, field := range catalogview.Fields {
		ff.values[field] = cmd.Flags().String(field, "", "Product "+field)
	}
	cmd.Flags().StringVar(&ff.imagen, imagenFlag, "", "Path of an image file to upload")
	return ff
}

func (ff *formFlags) form() (catalogview.Form, error) {
	var form catalogview.Form
	for _, field := range catalogview.Fields {
		var err error
		if form, err = form.Set(field, *ff.values[field]); err != nil {
			return form, err
		}
	}
	return form, nil
}

func newAddCommand(api func() *client.Client) *cobra.Command {
	var flags *formFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := flags.form()
			if err != nil {
				return err
			}
			c := api()
			if path := flags.imagen; path != "" {
				req, err := form.CreateRequest()
				if err != nil {
					return err
				}
				img, closeImg, err := openImage(path)
				if err != nil {
					return err
				}
				defer closeImg()
				if _, err := c.CreateWithImage(cmd.Context(), req, img); err != nil {
					return errors.New(catalogview.Message(err))
				}
				return render(cmd.OutOrStdout(), catalogview.NewCatalog(c, nil).Refresh(cmd.Context(), catalogview.ListView{}))
			}
			view, _ := catalogview.NewCatalog(c, nil).Add(cmd.Context(), catalogview.ListView{}, form)
			return render(cmd.OutOrStdout(), view)
		},
	}
	flags = registerFormFlags(cmd)
	return cmd
}

func newEditCommand(api func() *client.Client) *cobra.Command {
	var flags *formFlags
	cmd := &cobra.Command{
		Use:   "edit --codigo CODE [fields]",
		Short: "Update the non-empty fields of the product with the given code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := flags.form()
			if err != nil {
				return err
			}
			c := api()
			if path := flags.imagen; path != "" {
				if form.Codigo == "" {
					return errors.New("codigo is required to update a product")
				}
				req, err := form.UpdateRequest()
				if err != nil {
					return err
				}
				product, err := c.FindByCodigo(cmd.Context(), form.Codigo)
				if err != nil {
					return errors.New(catalogview.Message(err))
				}
				img, closeImg, err := openImage(path)
				if err != nil {
					return err
				}
				defer closeImg()
				if _, err := c.UpdateWithImage(cmd.Context(), product.ID, req, img); err != nil {
					return errors.New(catalogview.Message(err))
				}
				return render(cmd.OutOrStdout(), catalogview.NewCatalog(c, nil).Refresh(cmd.Context(), catalogview.ListView{}))
			}
			view, _ := catalogview.NewCatalog(c, nil).Edit(cmd.Context(), catalogview.ListView{}, form)
			return render(cmd.OutOrStdout(), view)
		},
	}
	flags = registerFormFlags(cmd)
	return cmd
}

func newBlockCommand(api func() *client.Client, block bool) *cobra.Command {
	use, short := "block ID", "Block a product"
	if !block {
		use, short = "unblock ID", "Unblock a product"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := api()
			// Show the listing the product moved out of.
			catalog := catalogview.NewCatalog(c, c.List)
			if !block {
				catalog = catalogview.NewCatalog(c, c.ListBlocked)
			}
			var view catalogview.ListView
			if block {
				view = catalog.Block(cmd.Context(), view, id)
			} else {
				view = catalog.Unblock(cmd.Context(), view, id)
			}
			return render(cmd.OutOrStdout(), view)
		},
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return uint(id), nil
}

func openImage(path string) (client.Image, func(), error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return client.Image{}, nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return client.Image{}, nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	img := client.Image{
		Filename:    filepath.Base(path),
		ContentType: mtype.String(),
		Data:        f,
	}
	return img, func() { f.Close() }, nil
}

// render prints the view as a table. A banner is returned as the command error.
func render(w io.Writer, view catalogview.ListView) error {
	if view.Banner != "" {
		return errors.New(view.Banner)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODIGO\tNOMBRE\tPRECIO\tSTOCK\tCATEGORIA\tBLOQUEADO")
	for _, p := range view.Products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%t\n",
			p.ID, p.Codigo, p.Nombre, p.Precio.StringFixed(2), p.Stock, p.Categoria, p.Bloqueado)
	}
	return tw.Flush()
}
