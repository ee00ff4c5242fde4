package documents

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	// Create inserts the document and assigns Index atomically as the
	// current number of the owner's documents.
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	GetByOwnerIndex(ctx context.Context, owner string, index uint64) (*models.Document, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Document, error)
	SetDocumentPDA(ctx context.Context, id string, pda string) error
	SetEncrypted(ctx context.Context, id string, encrypted bool) error
	SetDeletionState(ctx context.Context, id string, state models.DeletionState) error
}
