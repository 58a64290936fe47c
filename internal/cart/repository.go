package cart

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LoadRows returns every cart line for pricing, including lines whose product
// has since been deleted (Product is nil for those).
func (r *Repository) LoadRows(ctx context.Context, userID string) ([]domain.CartRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, c.quantity, p.id, p.price
		FROM cart_items c
		LEFT JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.CartRow
	for rows.Next() {
		var (
			row       domain.CartRow
			productID sql.NullString
			price     decimal.NullDecimal
		)
		if err := rows.Scan(&row.ProductID, &row.Quantity, &productID, &price); err != nil {
			return nil, err
		}
		if productID.Valid && price.Valid {
			row.Product = &domain.CartProduct{ID: productID.String, Price: price.Decimal}
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

const itemColumns = `
	c.id, c.user_id, c.product_id, c.quantity,
	p.id, p.name, p.description, p.price, p.image_url, p.stock_quantity,
	p.category, p.is_active, p.created_at, p.updated_at`

func scanItem(s interface{ Scan(...any) error }) (domain.CartItem, error) {
	var item domain.CartItem
	var imageURL sql.NullString
	err := s.Scan(
		&item.ID, &item.UserID, &item.ProductID, &item.Quantity,
		&item.Product.ID, &item.Product.Name, &item.Product.Description, &item.Product.Price,
		&imageURL, &item.Product.StockQuantity, &item.Product.Category, &item.Product.IsActive,
		&item.Product.CreatedAt, &item.Product.UpdatedAt,
	)
	if imageURL.Valid {
		item.Product.ImageURL = &imageURL.String
	}
	return item, err
}

// List returns the shopper-facing cart. Lines whose product is gone are hidden.
func (r *Repository) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *Repository) getItem(ctx context.Context, userID, productID string) (*domain.CartItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1 AND c.product_id = $2
	`, userID, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Add puts quantity more of a product in the cart, merging with an existing line.
func (r *Repository) Add(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	`, uuid.New().String(), userID, productID, quantity)
	if err != nil {
		return nil, err
	}

	return r.getItem(ctx, userID, productID)
}

// SetQuantity overwrites a line's quantity. It returns nil, nil when the
// product is not in the cart.
func (r *Repository) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.CartItem, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $1, updated_at = NOW()
		WHERE user_id = $2 AND product_id = $3
	`, quantity, userID, productID)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.getItem(ctx, userID, productID)
}

func (r *Repository) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	return err
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
