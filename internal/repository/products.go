package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/GophShop/internal/models"
)

// PostgresProductRepository stores catalog products. Deletion is soft: rows
// are flagged and purged later by the cleaner.
type PostgresProductRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresProductRepository creates a repository on db.
func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{DB: db}
}

const productColumns = `id, title, thumbnail, description, category, price, rating`

// List returns every live product ordered by id.
func (r *PostgresProductRepository) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE deleted = false ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return scanProducts(rows)
}

// ListByCategories returns the live products in any of categories.
func (r *PostgresProductRepository) ListByCategories(ctx context.Context, categories []string) ([]models.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE deleted = false AND category = ANY($1) ORDER BY id`,
		pq.Array(categories))
	if err != nil {
		return nil, fmt.Errorf("ListByCategories: %w", err)
	}
	return scanProducts(rows)
}

// Categories returns the distinct categories of live products.
func (r *PostgresProductRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT category FROM products WHERE deleted = false AND category <> '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("Categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a product and returns its id.
func (r *PostgresProductRepository) Create(ctx context.Context, p *models.Product) (models.ProductID, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO products (title, thumbnail, description, category, price, rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.Title, p.Thumbnail, p.Description, p.Category, p.Price, float64(p.Rating)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return models.ProductID(id), nil
}

// SoftDelete flags a live product as deleted at now. A missing or already
// deleted product is ErrNotFound.
func (r *PostgresProductRepository) SoftDelete(ctx context.Context, id models.ProductID, now time.Time) (*models.DeleteAck, error) {
	var ack models.DeleteAck
	var rawID int64
	err := r.DB.QueryRowContext(ctx, `
		UPDATE products SET deleted = true, deleted_at = $2
		 WHERE id = $1 AND deleted = false
		RETURNING id, deleted_at
	`, int64(id), now).Scan(&rawID, &ack.DeletedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("soft delete: %w", err)
	}
	ack.ID = models.ProductID(rawID)
	ack.IsDeleted = true
	return &ack, nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		var id int64
		var rating float64
		if err := rows.Scan(&id, &p.Title, &p.Thumbnail, &p.Description, &p.Category, &p.Price, &rating); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.ID = models.ProductID(id)
		p.Rating = models.Rating(rating)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}
