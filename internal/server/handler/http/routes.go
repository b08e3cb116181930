package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/middleware"
)

// NewRouter constructs the catalog API handler.
//
// Routes:
//
//	POST   /auth/login              → authHandler.Login (rate limited)
//	POST   /auth/register           → authHandler.Register (rate limited)
//	GET    /auth/me                 → authHandler.Me
//	GET    /products                → catalogHandler.Products
//	GET    /products/categories     → catalogHandler.Categories
//	GET    /products/category/{slug} → catalogHandler.ProductsByCategory
//	POST   /products/add            → catalogHandler.Add
//	DELETE /products/{id}           → catalogHandler.Delete
//
// Everything except login and registration requires a bearer token.
// loginRate is the number of login attempts allowed per IP per minute.
func NewRouter(
	authHandler *AuthHandler,
	catalogHandler *CatalogHandler,
	tokens middleware.TokenVerifier,
	logger *zap.Logger,
	loginRate int,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	// Bodies must be JSON; requests without a body pass.
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.Group(func(r chi.Router) {
		if loginRate > 0 {
			r.Use(httprate.LimitByIP(loginRate, time.Minute))
		}
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(tokens))
		r.Get("/auth/me", authHandler.Me)
		r.Get("/products", catalogHandler.Products)
		r.Get("/products/categories", catalogHandler.Categories)
		r.Get("/products/category/{slug}", catalogHandler.ProductsByCategory)
		r.Post("/products/add", catalogHandler.Add)
		r.Delete("/products/{id}", catalogHandler.Delete)
	})

	return r
}
