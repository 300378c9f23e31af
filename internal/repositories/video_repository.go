package repositories

import (
	"context"

	"github.com/viewtube/backend/internal/models"
)

// VideoRepository defines the data access contract for published videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	SetThumbnail(ctx context.Context, id, url string) (models.Video, error)
	Delete(ctx context.Context, id string) error
}
