package handlers

import (
	"context"
	"net/http"

	"github.com/viewtube/backend/internal/assets"
	"github.com/viewtube/backend/internal/models"
)

// AssetStore mirrors assets.Store so handler tests can substitute fakes.
type AssetStore interface {
	UploadImage(ctx context.Context, localPath string) (string, error)
	UploadVideo(ctx context.Context, localPath string) (assets.VideoUpload, error)
	Delete(ctx context.Context, assetURL string) (assets.DeleteResult, error)
}

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdateDetails(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetImage(ctx context.Context, id, field, url string) (models.User, error)
	AddToWatchHistory(ctx context.Context, id, videoID string) (models.User, error)
	RemoveFromWatchHistory(ctx context.Context, id, videoID string) (models.User, error)
}

// TokenService issues, rotates, and revokes authentication tokens.
type TokenService interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	Rotate(ctx context.Context, presented string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
}

// VideoStore captures persistence for published videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	SetThumbnail(ctx context.Context, id, url string) (models.Video, error)
	Delete(ctx context.Context, id string) error
}

// VideoReader is the read-only subset used when another entity references a
// video.
type VideoReader interface {
	FindByID(ctx context.Context, id string) (models.Video, error)
}

// PlaylistStore captures persistence for playlists.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	UpdateDetails(ctx context.Context, id, name, description string) (models.Playlist, error)
	AddVideo(ctx context.Context, id, videoID string) (models.Playlist, error)
	RemoveVideo(ctx context.Context, id, videoID string) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Videos    VideoStore
	Playlists PlaylistStore
	Tokens    TokenService
	Assets    AssetStore

	// Authenticate gates protected routes; built from the token verifier
	// and the user store in the app wiring.
	Authenticate func(http.Handler) http.Handler

	// AuthLimiter throttles credential endpoints per client IP.
	AuthLimiter RateLimiter

	CookieSecure bool
	UploadDir    string
}
