// Package catalog is the product side of the client: the product list with
// its persisted snapshot, categories, per-category listings and the
// optimistic delete.
package catalog

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/diag"
	"github.com/atinyakov/GophShop/internal/client/kv"
	"github.com/atinyakov/GophShop/internal/client/query"
	"github.com/atinyakov/GophShop/internal/logger"
	"github.com/atinyakov/GophShop/internal/models"
)

// Query keys.
const (
	KeyProducts   = "products"
	KeyCategories = "categories"
)

// DefaultCategory is shown when the category list comes back empty.
const DefaultCategory = "smartphones"

// Remote is the catalog API.
type Remote interface {
	Products(ctx context.Context) ([]models.Product, error)
	Categories(ctx context.Context) ([]models.Category, error)
	ProductsByCategory(ctx context.Context, slug string) ([]models.Product, error)
	DeleteProduct(ctx context.Context, id models.ProductID) error
}

// Catalog owns the product queries.
type Catalog struct {
	remote   Remote
	snapshot *snapshot
	opts     query.Options
	log      *zap.Logger

	products   *query.Query[[]models.Product]
	categories *query.Query[[]models.Category]

	mu         sync.Mutex
	byCategory map[string]*query.Query[[]models.Product]
	lastServed []models.Product
}

// New creates a Catalog. The product list is seeded from the snapshot in
// store before any fetch.
func New(remote Remote, store kv.Store, opts query.Options) *Catalog {
	opts.Logger = logger.OrNop(opts.Logger)
	if opts.Reporter == nil {
		opts.Reporter = diag.New(opts.Logger)
	}
	c := &Catalog{
		remote:     remote,
		snapshot:   &snapshot{store: store, log: opts.Logger},
		opts:       opts,
		log:        opts.Logger,
		byCategory: make(map[string]*query.Query[[]models.Product]),
	}
	c.products = query.New[[]models.Product](KeyProducts, remote.Products, c.snapshot, opts)
	c.categories = query.New[[]models.Category](KeyCategories, remote.Categories, nil, opts)
	return c
}

// Products serves the product list.
func (c *Catalog) Products(ctx context.Context) (query.Result[[]models.Product], error) {
	res, err := c.products.Read(ctx)
	if err == nil {
		c.served(res.Value)
	}
	return res, err
}

// RefreshProducts fetches the product list now.
func (c *Catalog) RefreshProducts(ctx context.Context) (query.Result[[]models.Product], error) {
	res, err := c.products.Refetch(ctx)
	if err == nil {
		c.served(res.Value)
	}
	return res, err
}

// UsingCache reports whether the product list is the persisted fallback
// served after a failed fetch. A snapshot loaded at startup does not count.
func (c *Catalog) UsingCache() bool {
	_, ok := c.products.Peek()
	return ok && c.products.Source() == query.Cache
}

// Categories lists the categories, or DefaultCategory alone when the server
// returns none.
func (c *Catalog) Categories(ctx context.Context) ([]models.Category, error) {
	res, err := c.categories.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Value) == 0 {
		return DefaultCategories(), nil
	}
	return res.Value, nil
}

// DefaultCategories is the list shown when no categories are available.
func DefaultCategories() []models.Category {
	return []models.Category{{Slug: DefaultCategory, Name: DefaultCategory}}
}

// ProductsByCategory serves the listing of one category. Each slug is
// cached separately and not persisted.
func (c *Catalog) ProductsByCategory(ctx context.Context, slug string) (query.Result[[]models.Product], error) {
	if slug == "" {
		slug = DefaultCategory
	}
	c.mu.Lock()
	q, ok := c.byCategory[slug]
	if !ok {
		fetch := func(ctx context.Context) ([]models.Product, error) {
			return c.remote.ProductsByCategory(ctx, slug)
		}
		q = query.New[[]models.Product]("category/"+slug, fetch, nil, c.opts)
		c.byCategory[slug] = q
	}
	c.mu.Unlock()
	return q.Read(ctx)
}

// DeleteProduct removes every product whose id equals id from the list,
// persists and serves the result right away, and asks the server to delete
// it in the background. A failed remote delete is logged; the local removal
// stands.
func (c *Catalog) DeleteProduct(id models.ProductID) []models.Product {
	remaining := removeProduct(c.deleteBase(), id)

	// SetData first so a refetch still in flight cannot persist the old list.
	c.products.SetData(remaining)
	if err := c.snapshot.Save(remaining); err != nil {
		c.log.Warn("failed to persist delete locally", zap.Error(err))
	}
	c.served(remaining)

	c.opts.Reporter.Go("catalog.delete "+id.String(), func(ctx context.Context) error {
		return c.remote.DeleteProduct(ctx, id)
	})
	return remaining
}

// deleteBase picks the list to delete from: the live value if non-empty,
// then the persisted snapshot, then whatever was last served.
func (c *Catalog) deleteBase() []models.Product {
	if res, ok := c.products.Peek(); ok && len(res.Value) > 0 {
		return res.Value
	}
	if snap, err := c.snapshot.load(); err == nil {
		return snap
	} else if !errors.Is(err, kv.ErrNotFound) {
		c.log.Warn("failed to read product snapshot", zap.Error(err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastServed
}

func (c *Catalog) served(products []models.Product) {
	c.mu.Lock()
	c.lastServed = products
	c.mu.Unlock()
}

// removeProduct returns a new slice without the entries matching id.
func removeProduct(products []models.Product, id models.ProductID) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}
