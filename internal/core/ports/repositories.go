package ports

import (
	"context"

	"github.com/JettChenT/ek-geo/internal/core/domain"
)

// PointSetRepository persists point sets.
type PointSetRepository interface {
	// Create stores a new set and returns its ID.
	Create(ctx context.Context, info domain.PointSetInfo, points *domain.PointSet) (string, error)
	// Get returns a set with its points, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.StoredPointSet, error)
	List(ctx context.Context, limit, offset int) ([]domain.PointSetInfo, int, error)
	Delete(ctx context.Context, id string) error
	// AppendPoints adds points after the existing ones, preserving order.
	AppendPoints(ctx context.Context, id string, points []domain.GeoPoint) error
}
