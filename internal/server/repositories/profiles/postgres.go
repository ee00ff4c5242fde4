package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

const walletConstraint = "profiles_wallet_address_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query :=
		`INSERT INTO profiles (wallet_address, profile_pda)
		 VALUES ($1, $2)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, profile.WalletAddress, profile.ProfilePDA).
		Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, walletConstraint) {
			return nil, fmt.Errorf("profile %s: %w", profile.WalletAddress, common.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return profile, nil
}

func (r *PostgresRepository) getByWallet(ctx context.Context, query, wallet string) (*models.Profile, error) {
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, wallet).
		Scan(&p.ID, &p.WalletAddress, &p.ProfilePDA, &p.AuthMessage, &p.AuthMessageUsed, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) GetByWallet(ctx context.Context, wallet string) (*models.Profile, error) {
	query :=
		`SELECT id, wallet_address, profile_pda, auth_message, auth_message_used, created_at, updated_at
		 FROM profiles
		 WHERE wallet_address = $1
		 `
	return r.getByWallet(ctx, query, wallet)
}

// GetByWalletForUpdate locks the row until the surrounding transaction ends.
func (r *PostgresRepository) GetByWalletForUpdate(ctx context.Context, wallet string) (*models.Profile, error) {
	query :=
		`SELECT id, wallet_address, profile_pda, auth_message, auth_message_used, created_at, updated_at
		 FROM profiles
		 WHERE wallet_address = $1
		 FOR UPDATE
		 `
	return r.getByWallet(ctx, query, wallet)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
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

// SetAuthMessage stores a fresh login challenge and marks it unused.
func (r *PostgresRepository) SetAuthMessage(ctx context.Context, wallet string, message string) error {
	query :=
		`UPDATE profiles
		 SET auth_message = $2, auth_message_used = FALSE, updated_at = now()
		 WHERE wallet_address = $1
		 `
	return r.exec(ctx, query, wallet, message)
}

func (r *PostgresRepository) MarkAuthMessageUsed(ctx context.Context, wallet string) error {
	query :=
		`UPDATE profiles
		 SET auth_message_used = TRUE, updated_at = now()
		 WHERE wallet_address = $1
		 `
	return r.exec(ctx, query, wallet)
}
