package profiles

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	GetByWallet(ctx context.Context, wallet string) (*models.Profile, error)
	GetByWalletForUpdate(ctx context.Context, wallet string) (*models.Profile, error)
	SetAuthMessage(ctx context.Context, wallet string, message string) error
	MarkAuthMessageUsed(ctx context.Context, wallet string) error
}
