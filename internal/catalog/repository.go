package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const productColumns = `
	id, name, description, price, image_url, stock_quantity, category,
	is_active, created_at, updated_at`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(s interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	var imageURL sql.NullString
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &imageURL, &p.StockQuantity,
		&p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	return p, err
}

// List returns products newest first. activeOnly hides retired products.
func (r *ProductRepository) List(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active OR NOT $1
		ORDER BY created_at DESC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()

	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, description, price, image_url, stock_quantity, category, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.StockQuantity, p.Category, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Update applies patch under a row lock. It returns nil, nil for an unknown id.
func (r *ProductRepository) Update(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	patch.apply(&p)

	err = tx.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, image_url = $5, stock_quantity = $6,
		    category = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.StockQuantity, p.Category, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &p, tx.Commit()
}

// Delete removes the product and its media records. Cart lines that still
// reference it stop resolving; order lines keep their snapshot.
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
