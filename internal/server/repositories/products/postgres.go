package products

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PhotoURLs == nil {
		p.PhotoURLs = []string{}
	}

	photos, err := json.Marshal(p.PhotoURLs)
	if err != nil {
		return nil, fmt.Errorf("encode photo urls: %w", err)
	}

	query :=
		`INSERT INTO products (id, seller_id, name, breed, category, description, price, quantity, age, gender, photo_urls, video_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		p.ID, p.SellerID, p.Name, p.Breed, p.Category, p.Description, p.Price, p.Quantity,
		p.Age, p.Gender, string(photos), p.VideoURL,
	).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Product, error) {
	query :=
		`SELECT id, seller_id, name, breed, category, description, price, quantity, age, gender, photo_urls, video_url, created_at
		 FROM products
		 WHERE seller_id = $1
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Product, 0)
	for rows.Next() {
		var (
			p      models.Product
			photos []byte
		)
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Breed, &p.Category, &p.Description,
			&p.Price, &p.Quantity, &p.Age, &p.Gender, &photos, &p.VideoURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(photos) > 0 {
			if err := json.Unmarshal(photos, &p.PhotoURLs); err != nil {
				return nil, fmt.Errorf("decode photo urls: %w", err)
			}
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
