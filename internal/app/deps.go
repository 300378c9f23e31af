package app

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/viewtube/backend/internal/assets"
	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/config"
	"github.com/viewtube/backend/internal/handlers"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/repositories"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers.
func buildDependencies(ctx context.Context, client *mongo.Client, cfg config.Config) (handlers.Dependencies, error) {
	database := client.Database(cfg.MongoDatabase)

	users := repositories.NewMongoUserRepository(database)
	videos := repositories.NewMongoVideoRepository(database)
	playlists := repositories.NewMongoPlaylistRepository(database)

	tokens := auth.NewTokenService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		users,
	)

	prober := assets.NewFFProbe(cfg.FFProbePath, cfg.AssetTimeout)
	store, err := assets.NewS3Store(ctx, cfg.ObjectStore, cfg.AssetTimeout, prober)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure asset store: %w", err)
	}

	// 10 credential attempts per minute per IP, burst of 5.
	authLimiter := middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute)

	return handlers.Dependencies{
		Users:        users,
		Videos:       videos,
		Playlists:    playlists,
		Tokens:       tokens,
		Assets:       store,
		Authenticate: middleware.Authenticate(tokens, users),
		AuthLimiter:  authLimiter,
		CookieSecure: cfg.CookieSecure,
		UploadDir:    cfg.UploadDir,
	}, nil
}
