package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tuanvumaihuynh/product-catalog/internal/client"
	"github.com/tuanvumaihuynh/product-catalog/internal/clientsync"
	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/pkg/localstore"
)

const usage = `usage: catalogctl <command> [flags] [id]

commands:
  list    [-favorites]                       list products
  get     <id>                               show one product
  upload  -title T -price P -file PATH       upload an image and create a product
  create  -title T -price P -image REF       create a product for an uploaded image
  update  -title T -price P -image REF <id>  replace a product
  delete  <id>                               delete a product
  fav     <id>                               toggle a product as favorite
`

var errUsage = errors.New("invalid usage")

type app struct {
	out       io.Writer
	logger    *slog.Logger
	products  *clientsync.Collection
	product   *clientsync.Single
	favorites *clientsync.Favorites
}

func newApp(cfg config.Client, out io.Writer, logger *slog.Logger) *app {
	remote := client.New(cfg)
	notifier := clientsync.NotifierFunc(func(n clientsync.Notification) {
		logger.Error("catalog request failed", slog.String("op", n.Op), slog.Any("error", n.Err))
	})

	return &app{
		out:       out,
		logger:    logger,
		products:  clientsync.NewCollection(remote, notifier),
		product:   clientsync.NewSingle(remote),
		favorites: clientsync.NewFavorites(localstore.NewFile(cfg.FavoritesPath)),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "list":
		return a.list(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "upload":
		return a.upload(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "fav":
		return a.toggleFavorite(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list")
	onlyFavorites := fs.Bool("favorites", false, "show favorites only")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.products.FetchAll(ctx); err != nil {
		return err
	}
	products := a.products.State().Products

	if *onlyFavorites {
		if err := a.favorites.Load(); err != nil {
			return err
		}
		products = clientsync.FilterFavorites(products, a.favorites.List())
	}

	return a.print(products)
}

func (a *app) get(ctx context.Context, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}

	if err := a.product.FetchOne(ctx, id); err != nil {
		return err
	}
	return a.print(a.product.State().Product)
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := newFlagSet("upload")
	title := fs.String("title", "", "product title")
	price := fs.String("price", "", "product price")
	file := fs.String("file", "", "path of the image to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := parsePrice(*price)
	if err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("%w: -file is required", errUsage)
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	product, err := a.products.Upload(ctx, client.UploadInput{
		Title:       *title,
		Price:       p,
		Filename:    filepath.Base(*file),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(*file))),
		Content:     f,
	})
	if err != nil {
		return err
	}
	return a.print(product)
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	input, err := parseProductInput(fs, args)
	if err != nil {
		return err
	}

	product, err := a.products.Create(ctx, input)
	if err != nil {
		return err
	}
	return a.print(product)
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := newFlagSet("update")
	input, err := parseProductInput(fs, args)
	if err != nil {
		return err
	}
	id, err := singleID(fs.Args())
	if err != nil {
		return err
	}

	product, err := a.products.Update(ctx, id, input)
	if err != nil {
		return err
	}
	return a.print(product)
}

func (a *app) delete(ctx context.Context, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}

	if err := a.products.Delete(ctx, id); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "product deleted", slog.String("id", id))
	return nil
}

func (a *app) toggleFavorite(ctx context.Context, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}

	if err := a.favorites.Load(); err != nil {
		return err
	}
	if err := a.product.FetchOne(ctx, id); err != nil {
		return err
	}

	favorite, err := a.favorites.Toggle(*a.product.State().Product)
	if err != nil {
		return err
	}
	return a.print(struct {
		ID       string `json:"id"`
		Favorite bool   `json:"favorite"`
	}{ID: id, Favorite: favorite})
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseProductInput(fs *flag.FlagSet, args []string) (client.ProductInput, error) {
	title := fs.String("title", "", "product title")
	price := fs.String("price", "", "product price")
	image := fs.String("image", "", "retrieval url or name of an uploaded image")
	if err := fs.Parse(args); err != nil {
		return client.ProductInput{}, err
	}

	p, err := parsePrice(*price)
	if err != nil {
		return client.ProductInput{}, err
	}

	return client.ProductInput{Title: *title, Price: p, Image: *image}, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: -price is required", errUsage)
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q is not a number", errUsage, s)
	}
	return p, nil
}

func singleID(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: expected exactly one product id", errUsage)
	}
	return args[0], nil
}
