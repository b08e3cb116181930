package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/atinyakov/GophShop/internal/models"
)

// ProductRepository defines the persistence operations required by the
// catalog service.
type ProductRepository interface {
	List(ctx context.Context) ([]models.Product, error)
	ListByCategories(ctx context.Context, categories []string) ([]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, p *models.Product) (models.ProductID, error)
	SoftDelete(ctx context.Context, id models.ProductID, now time.Time) (*models.DeleteAck, error)
}

// CatalogService serves products and categories.
type CatalogService struct {
	repo ProductRepository
	now  func() time.Time
}

// NewCatalogService constructs a CatalogService on repo.
func NewCatalogService(repo ProductRepository) *CatalogService {
	return &CatalogService{repo: repo, now: time.Now}
}

// Products lists every live product.
func (s *CatalogService) Products(ctx context.Context) ([]models.Product, error) {
	return s.repo.List(ctx)
}

// ProductsByCategory lists the live products of one category.
func (s *CatalogService) ProductsByCategory(ctx context.Context, slug string) ([]models.Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("%w: empty category", ErrInvalidInput)
	}
	return s.repo.ListByCategories(ctx, []string{slug})
}

// Categories lists the categories in use. baseURL prefixes each category URL.
func (s *CatalogService) Categories(ctx context.Context, baseURL string) ([]models.Category, error) {
	slugs, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, models.Category{
			Slug: slug,
			Name: categoryName(slug),
			URL:  strings.TrimRight(baseURL, "/") + "/products/category/" + slug,
		})
	}
	return out, nil
}

// AddProduct stores a new product and returns it with its id.
func (s *CatalogService) AddProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	p.Category = strings.TrimSpace(p.Category)
	id, err := s.repo.Create(ctx, &p)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// DeleteProduct soft-deletes a product.
func (s *CatalogService) DeleteProduct(ctx context.Context, id models.ProductID) (*models.DeleteAck, error) {
	return s.repo.SoftDelete(ctx, id, s.now().UTC())
}

// categoryName turns "mens-shirts" into "Mens Shirts".
func categoryName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
