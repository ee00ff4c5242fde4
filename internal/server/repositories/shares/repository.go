package shares

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	// Upsert inserts the share or refreshes the existing row for the same
	// (DocumentID, InviteeAddress). It reports whether a row was inserted.
	Upsert(ctx context.Context, share *models.Share) (bool, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Share, error)
	ListSharedWith(ctx context.Context, invitee string) ([]models.SharedDocument, error)
}
