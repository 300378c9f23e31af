package repositories

import (
	"context"

	"github.com/viewtube/backend/internal/models"
)

// PlaylistRepository defines the data access contract for playlists.
type PlaylistRepository interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	UpdateDetails(ctx context.Context, id, name, description string) (models.Playlist, error)
	AddVideo(ctx context.Context, id, videoID string) (models.Playlist, error)
	RemoveVideo(ctx context.Context, id, videoID string) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
}
