package repositories

import (
	"context"

	"github.com/viewtube/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	UpdateDetails(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetImage(ctx context.Context, id, field, url string) (models.User, error)

	// Refresh-token lifecycle. SetRefreshToken and ClearRefreshToken write
	// unconditionally; SwapRefreshToken only succeeds when the stored value
	// still equals current, returning ErrConflict otherwise.
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error

	AddToWatchHistory(ctx context.Context, id, videoID string) (models.User, error)
	RemoveFromWatchHistory(ctx context.Context, id, videoID string) (models.User, error)
}

// User image fields accepted by SetImage.
const (
	ImageFieldAvatar     = "avatar"
	ImageFieldCoverImage = "cover_image"
)
