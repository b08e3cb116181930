package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
	"github.com/atinyakov/GophShop/internal/service"
)

type fakeCatalogService struct {
	products   []models.Product
	err        error
	gotSlug    string
	gotBaseURL string
	deleted    []models.ProductID
}

func (f *fakeCatalogService) Products(context.Context) ([]models.Product, error) {
	return f.products, f.err
}

func (f *fakeCatalogService) ProductsByCategory(_ context.Context, slug string) ([]models.Product, error) {
	f.gotSlug = slug
	return f.products, f.err
}

func (f *fakeCatalogService) Categories(_ context.Context, baseURL string) ([]models.Category, error) {
	f.gotBaseURL = baseURL
	if f.err != nil {
		return nil, f.err
	}
	return []models.Category{{Slug: "smartphones", Name: "Smartphones", URL: baseURL + "/products/category/smartphones"}}, nil
}

func (f *fakeCatalogService) AddProduct(_ context.Context, p models.Product) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p.ID = 101
	return &p, nil
}

func (f *fakeCatalogService) DeleteProduct(_ context.Context, id models.ProductID) (*models.DeleteAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, id)
	return &models.DeleteAck{ID: id, IsDeleted: true, DeletedOn: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}, nil
}

// serve routes one request through a bare chi router so URL params resolve.
func serve(h *CatalogHandler, method, pattern, target string, body []byte) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	switch method {
	case http.MethodGet:
		r.Get(pattern, map[string]http.HandlerFunc{
			"/products":                 h.Products,
			"/products/categories":      h.Categories,
			"/products/category/{slug}": h.ProductsByCategory,
		}[pattern])
	case http.MethodPost:
		r.Post(pattern, h.Add)
	case http.MethodDelete:
		r.Delete(pattern, h.Delete)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return rec
}

func TestCatalogHandler_Products(t *testing.T) {
	svc := &fakeCatalogService{products: []models.Product{{ID: 1, Title: "Phone"}, {ID: 2, Title: "Laptop"}}}
	rec := serve(&CatalogHandler{CatalogService: svc}, http.MethodGet, "/products", "/products", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Products []models.Product `json:"products"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "Laptop", page.Products[1].Title)
}

func TestCatalogHandler_EmptyListIsArray(t *testing.T) {
	rec := serve(&CatalogHandler{CatalogService: &fakeCatalogService{}}, http.MethodGet, "/products", "/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"products":[],"total":0}`, rec.Body.String())
}

func TestCatalogHandler_ProductsFailure(t *testing.T) {
	rec := serve(&CatalogHandler{CatalogService: &fakeCatalogService{err: errors.New("db down")}}, http.MethodGet, "/products", "/products", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCatalogHandler_ProductsByCategory(t *testing.T) {
	svc := &fakeCatalogService{products: []models.Product{{ID: 3, Title: "Pixel", Category: "smartphones"}}}
	rec := serve(&CatalogHandler{CatalogService: svc}, http.MethodGet, "/products/category/{slug}", "/products/category/smartphones", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "smartphones", svc.gotSlug)
	assert.Contains(t, rec.Body.String(), "Pixel")
}

func TestCatalogHandler_Categories(t *testing.T) {
	svc := &fakeCatalogService{}
	rec := serve(&CatalogHandler{CatalogService: svc}, http.MethodGet, "/products/categories", "/products/categories", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://example.com", svc.gotBaseURL)
	assert.Contains(t, rec.Body.String(), `"url":"http://example.com/products/category/smartphones"`)
}

func TestCatalogHandler_Add(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		err          error
		expectedCode int
	}{
		{"invalid JSON", `{`, nil, http.StatusBadRequest},
		{"missing title", `{"title":""}`, service.ErrInvalidInput, http.StatusBadRequest},
		{"created", `{"title":"Tablet","category":"tablets","price":299}`, nil, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &CatalogHandler{CatalogService: &fakeCatalogService{err: tt.err}}
			rec := serve(h, http.MethodPost, "/products/add", "/products/add", []byte(tt.body))
			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedCode == http.StatusCreated {
				assert.Contains(t, rec.Body.String(), `"id":101`)
			}
		})
	}
}

func TestCatalogHandler_Delete(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		err          error
		expectedCode int
		expectedID   models.ProductID
	}{
		{"bad id", "/products/abc", nil, http.StatusBadRequest, 0},
		{"not found", "/products/9", repository.ErrNotFound, http.StatusNotFound, 0},
		{"store failure", "/products/9", errors.New("boom"), http.StatusInternalServerError, 0},
		{"deleted", "/products/7", nil, http.StatusOK, 7},
		{"float id", "/products/7.0", nil, http.StatusOK, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeCatalogService{err: tt.err}
			rec := serve(&CatalogHandler{CatalogService: svc}, http.MethodDelete, "/products/{id}", tt.target, nil)
			require.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedCode == http.StatusOK {
				assert.Equal(t, []models.ProductID{tt.expectedID}, svc.deleted)
				var ack models.DeleteAck
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&ack))
				assert.True(t, ack.IsDeleted)
			}
		})
	}
}
