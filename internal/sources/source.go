package sources

import (
	"context"

	"github.com/benmeehan/collar-sync/internal/models"
)

// Source yields one batch of externally reported observations. Any returned
// error is a batch-level failure; malformed items are returned as-is and
// rejected later by the reconciler.
type Source interface {
	Fetch(ctx context.Context) ([]models.Observation, error)
}
