package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
	"github.com/atinyakov/GophShop/internal/service"
)

// CatalogService defines the catalog operations required by the HTTP handlers.
type CatalogService interface {
	Products(ctx context.Context) ([]models.Product, error)
	ProductsByCategory(ctx context.Context, slug string) ([]models.Product, error)
	Categories(ctx context.Context, baseURL string) ([]models.Category, error)
	AddProduct(ctx context.Context, p models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id models.ProductID) (*models.DeleteAck, error)
}

// CatalogHandler serves products and categories.
type CatalogHandler struct {
	CatalogService CatalogService
	Logger         *zap.Logger
}

type productList struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
}

// Products handles GET /products.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.CatalogService.Products(r.Context())
	if err != nil {
		h.internalError(w, "list products failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newProductList(products))
}

// ProductsByCategory handles GET /products/category/{slug}.
func (h *CatalogHandler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.CatalogService.ProductsByCategory(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, service.ErrInvalidInput) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "list category failed", err)
		return
	}
	writeJSON(w, http.StatusOK, newProductList(products))
}

// Categories handles GET /products/categories.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.CatalogService.Categories(r.Context(), baseURL(r))
	if err != nil {
		h.internalError(w, "list categories failed", err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// Add handles POST /products/add.
func (h *CatalogHandler) Add(w http.ResponseWriter, r *http.Request) {
	var p models.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	created, err := h.CatalogService.AddProduct(r.Context(), p)
	if errors.Is(err, service.ErrInvalidInput) {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "add product failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Delete handles DELETE /products/{id}. The product is soft-deleted and
// purged later.
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	ack, err := h.CatalogService.DeleteProduct(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Product with id '"+id.String()+"' not found")
		return
	}
	if err != nil {
		h.internalError(w, "delete product failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (h *CatalogHandler) internalError(w http.ResponseWriter, msg string, err error) {
	logError(h.Logger, msg, err)
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func newProductList(products []models.Product) productList {
	if products == nil {
		products = []models.Product{}
	}
	return productList{Products: products, Total: len(products)}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
