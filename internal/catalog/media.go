package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type MediaRepository struct {
	db *sql.DB
}

func NewMediaRepository(db *sql.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Commit records media the object store has already accepted. The first
// image committed for a product without one becomes its image_url.
func (r *MediaRepository) Commit(ctx context.Context, m *domain.ProductMedia) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	m.ID = uuid.New().String()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO product_media (id, product_id, media_type, storage_path, public_url, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`, m.ID, m.ProductID, m.MediaType, m.StoragePath, m.PublicURL, m.SortOrder).Scan(&m.CreatedAt)
	if err != nil {
		return err
	}

	if m.MediaType == domain.MediaTypeImage {
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET image_url = $2, updated_at = NOW()
			WHERE id = $1 AND image_url IS NULL
		`, m.ProductID, m.PublicURL)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *MediaRepository) List(ctx context.Context, productID string) ([]domain.ProductMedia, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, media_type, storage_path, public_url, sort_order, created_at
		FROM product_media
		WHERE product_id = $1
		ORDER BY sort_order, created_at
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	media := []domain.ProductMedia{}
	for rows.Next() {
		var m domain.ProductMedia
		if err := rows.Scan(&m.ID, &m.ProductID, &m.MediaType, &m.StoragePath, &m.PublicURL, &m.SortOrder, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}

	return media, rows.Err()
}

// Delete drops a media record. When it was the product's image_url, the next
// image by sort order takes its place, or image_url is cleared. It returns
// nil, nil for an unknown id.
func (r *MediaRepository) Delete(ctx context.Context, id string) (*domain.ProductMedia, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var m domain.ProductMedia
	err = tx.QueryRowContext(ctx, `
		DELETE FROM product_media WHERE id = $1
		RETURNING id, product_id, media_type, storage_path, public_url, sort_order, created_at
	`, id).Scan(&m.ID, &m.ProductID, &m.MediaType, &m.StoragePath, &m.PublicURL, &m.SortOrder, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if m.MediaType == domain.MediaTypeImage {
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET image_url = (
				SELECT public_url FROM product_media
				WHERE product_id = $1 AND media_type = 'image'
				ORDER BY sort_order, created_at
				LIMIT 1
			), updated_at = NOW()
			WHERE id = $1 AND image_url = $2
		`, m.ProductID, m.PublicURL)
		if err != nil {
			return nil, err
		}
	}

	return &m, tx.Commit()
}
