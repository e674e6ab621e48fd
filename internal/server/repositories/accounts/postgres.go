package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/dbx"
	"github.com/dmitrijs2005/petmarket/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectColumns = `SELECT id, name, email, password_hash, role, is_seller, is_verified, seller_verified,
		business_name, phone_number, address, city, state, business_description,
		brand_image_url, verification_doc_url, created_at, updated_at
		FROM accounts`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Role == "" {
		account.Role = common.RoleCustomer
	}

	query :=
		`INSERT INTO accounts (id, name, email, password_hash, role, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		account.ID, account.Name, account.Email, account.PasswordHash, account.Role, account.IsVerified,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, selectColumns+` WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsSeller, &a.IsVerified, &a.SellerVerified,
		&a.BusinessName, &a.PhoneNumber, &a.Address, &a.City, &a.State, &a.BusinessDescription,
		&a.BrandImageURL, &a.VerificationDocURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateSellerProfile(ctx context.Context, id string, p models.SellerProfile) error {
	query :=
		`UPDATE accounts SET business_name = $2, phone_number = $3, address = $4, city = $5, state = $6,
		 business_description = $7, brand_image_url = $8, verification_doc_url = $9,
		 is_seller = TRUE, role = $10, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, p.BusinessName, p.PhoneNumber, p.Address, p.City, p.State,
		p.BusinessDescription, p.BrandImageURL, p.VerificationDocURL, common.RoleSeller)
}

func (r *PostgresRepository) UpdateSellerSettings(ctx context.Context, id string, p models.SellerProfile) error {
	query :=
		`UPDATE accounts SET business_name = $2, phone_number = $3, address = $4, city = $5, state = $6,
		 business_description = $7,
		 brand_image_url = COALESCE(NULLIF($8, ''), brand_image_url),
		 verification_doc_url = COALESCE(NULLIF($9, ''), verification_doc_url),
		 updated_at = now()
		 WHERE id = $1 AND is_seller`

	return r.execOne(ctx, query, id, p.BusinessName, p.PhoneNumber, p.Address, p.City, p.State,
		p.BusinessDescription, p.BrandImageURL, p.VerificationDocURL)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
}

func (r *PostgresRepository) UpdateName(ctx context.Context, id string, name string) error {
	return r.execOne(ctx, `UPDATE accounts SET name = $2, updated_at = now() WHERE id = $1`, id, name)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

// execOne runs a statement expected to touch exactly one account row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
