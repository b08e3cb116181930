package catalog

import (
	"errors"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/kv"
	"github.com/atinyakov/GophShop/internal/models"
)

// snapshot persists the product list under kv.KeyQueryCache as
// {"products": [...]}.
type snapshot struct {
	store kv.Store
	log   *zap.Logger
}

func (s *snapshot) load() ([]models.Product, error) {
	var page models.ProductPage
	if err := kv.GetObject(s.store, kv.KeyQueryCache, &page); err != nil {
		return nil, err
	}
	if page.Products == nil {
		page.Products = []models.Product{}
	}
	return page.Products, nil
}

// Load treats a malformed snapshot as absent.
func (s *snapshot) Load() ([]models.Product, bool) {
	products, err := s.load()
	if errors.Is(err, kv.ErrMalformed) {
		s.log.Warn("failed to parse product snapshot", zap.Error(err))
	}
	return products, err == nil
}

func (s *snapshot) Save(products []models.Product) error {
	if products == nil {
		products = []models.Product{}
	}
	return kv.SetObject(s.store, kv.KeyQueryCache, models.ProductPage{Products: products})
}
