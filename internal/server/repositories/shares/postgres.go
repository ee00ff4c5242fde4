package shares

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/dbx"
	"github.com/dmitrijs2005/docvault/internal/server/models"
)

const sharePDAConstraint = "shares_share_pda_key"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert keeps the row identity and created_at of an existing share; only
// valid_until, owner_address and share_pda are refreshed.
func (r *PostgresRepository) Upsert(ctx context.Context, share *models.Share) (bool, error) {
	query :=
		`INSERT INTO shares (document_id, owner_address, invitee_address, share_pda, valid_until)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id, invitee_address) DO UPDATE
		 SET valid_until = EXCLUDED.valid_until,
		     owner_address = EXCLUDED.owner_address,
		     share_pda = EXCLUDED.share_pda,
		     updated_at = now()
		 RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
		 `

	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		share.DocumentID, share.OwnerAddress, share.InviteeAddress, share.SharePDA, share.ValidUntil).
		Scan(&share.ID, &share.CreatedAt, &share.UpdatedAt, &inserted)

	if err != nil {
		if dbx.IsUniqueViolation(err, sharePDAConstraint) {
			return false, fmt.Errorf("share %s: %w", share.SharePDA, common.ErrAlreadyExists)
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return inserted, nil
}

// ListByOwner returns every share granted on owner's documents.
func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]models.Share, error) {
	query :=
		`SELECT id, document_id, owner_address, invitee_address, share_pda, valid_until, created_at, updated_at
		 FROM shares
		 WHERE owner_address = $1
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Share
	for rows.Next() {
		var s models.Share
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.OwnerAddress, &s.InviteeAddress, &s.SharePDA,
			&s.ValidUntil, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

// ListSharedWith returns the documents shared with invitee, newest grant
// first. Purged documents are left out.
func (r *PostgresRepository) ListSharedWith(ctx context.Context, invitee string) ([]models.SharedDocument, error) {
	query :=
		`SELECT d.id, d.profile_id, d.owner_address, d.idx, d.object_name, d.document_pda, d.name, d.size, d.extension,
		        d.is_encrypted, d.deleted_on_ledger, d.deletion_state, d.created_at, d.updated_at,
		        s.share_pda, s.valid_until
		 FROM shares s
		 JOIN documents d ON d.id = s.document_id
		 WHERE s.invitee_address = $1 AND d.deletion_state <> 'object_purged'
		 ORDER BY s.updated_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, invitee)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.SharedDocument
	for rows.Next() {
		var sd models.SharedDocument
		d := &sd.Document
		if err := rows.Scan(&d.ID, &d.ProfileID, &d.OwnerAddress, &d.Index, &d.ObjectName, &d.DocumentPDA,
			&d.Metadata.Name, &d.Metadata.Size, &d.Metadata.Extension,
			&d.IsEncrypted, &d.DeletedOnLedger, &d.DeletionState, &d.CreatedAt, &d.UpdatedAt,
			&sd.SharePDA, &sd.ValidUntil); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, sd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
