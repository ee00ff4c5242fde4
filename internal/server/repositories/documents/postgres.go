package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

const ownerIndexConstraint = "documents_owner_idx_key"

const documentColumns = `id, profile_id, owner_address, idx, object_name, document_pda, name, size, extension,
		 is_encrypted, deleted_on_ledger, deletion_state, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	d := &models.Document{}
	err := row.Scan(&d.ID, &d.ProfileID, &d.OwnerAddress, &d.Index, &d.ObjectName, &d.DocumentPDA,
		&d.Metadata.Name, &d.Metadata.Size, &d.Metadata.Extension,
		&d.IsEncrypted, &d.DeletedOnLedger, &d.DeletionState, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Create counts and inserts in one statement. Two concurrent uploads for the
// same owner can still read the same count; the loser fails on the
// (owner_address, idx) constraint with common.ErrDuplicateIndex and may retry.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	query :=
		`INSERT INTO documents (profile_id, owner_address, idx, object_name, document_pda, name, size, extension, is_encrypted, deletion_state)
		 SELECT $1, $2, COUNT(*), $3, $4, $5, $6, $7, FALSE, 'active'
		 FROM documents
		 WHERE owner_address = $2
		 RETURNING id, idx, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		doc.ProfileID, doc.OwnerAddress, doc.ObjectName, doc.DocumentPDA,
		doc.Metadata.Name, doc.Metadata.Size, doc.Metadata.Extension).
		Scan(&doc.ID, &doc.Index, &doc.CreatedAt, &doc.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, ownerIndexConstraint) {
			return nil, fmt.Errorf("owner %s: %w", doc.OwnerAddress, common.ErrDuplicateIndex)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	doc.IsEncrypted = false
	doc.DeletedOnLedger = false
	doc.DeletionState = models.DeletionActive

	return doc, nil
}

func (r *PostgresRepository) GetByOwnerIndex(ctx context.Context, owner string, index uint64) (*models.Document, error) {
	query :=
		`SELECT ` + documentColumns + `
		 FROM documents
		 WHERE owner_address = $1 AND idx = $2
		 `

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, owner, index))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return d, nil
}

// ListByOwner returns every document of owner, newest first, purged ones
// included.
func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]models.Document, error) {
	query :=
		`SELECT ` + documentColumns + `
		 FROM documents
		 WHERE owner_address = $1
		 ORDER BY created_at DESC, idx DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
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

func (r *PostgresRepository) SetDocumentPDA(ctx context.Context, id string, pda string) error {
	query :=
		`UPDATE documents
		 SET document_pda = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, pda)
}

func (r *PostgresRepository) SetEncrypted(ctx context.Context, id string, encrypted bool) error {
	query :=
		`UPDATE documents
		 SET is_encrypted = $2, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, encrypted)
}

// SetDeletionState moves the document forward in the two-phase delete.
// The WHERE clause refuses backward transitions, which surface as
// common.ErrorNotFound like a missing row.
func (r *PostgresRepository) SetDeletionState(ctx context.Context, id string, state models.DeletionState) error {
	query :=
		`UPDATE documents
		 SET deletion_state = $2::text, deleted_on_ledger = ($2::text <> 'active'), updated_at = now()
		 WHERE id = $1
		   AND (CASE deletion_state WHEN 'active' THEN 0 WHEN 'ledger_confirmed_deleted' THEN 1 ELSE 2 END)
		    <= (CASE $2::text WHEN 'active' THEN 0 WHEN 'ledger_confirmed_deleted' THEN 1 ELSE 2 END)
		 `
	return r.exec(ctx, query, id, state)
}
