package handlers

import "net/http"

// RegisterRoutes attaches every API route to the mux. Protected routes are
// wrapped with the authentication guard from Dependencies.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	users := UserHandler{
		Users:        deps.Users,
		Tokens:       deps.Tokens,
		Assets:       deps.Assets,
		Videos:       deps.Videos,
		Limiter:      deps.AuthLimiter,
		CookieSecure: deps.CookieSecure,
		UploadDir:    deps.UploadDir,
	}
	videos := VideoHandler{
		Videos:    deps.Videos,
		Assets:    deps.Assets,
		UploadDir: deps.UploadDir,
	}
	playlists := PlaylistHandler{
		Playlists: deps.Playlists,
		Videos:    deps.Videos,
	}

	guard := deps.Authenticate
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	protected := func(fn http.HandlerFunc) http.Handler {
		return guard(fn)
	}

	mux.HandleFunc("GET /healthz", HealthHandler{}.Handle)

	mux.HandleFunc("POST /api/v1/users/register", users.Register)
	mux.HandleFunc("POST /api/v1/users/login", users.Login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", users.Refresh)
	mux.Handle("POST /api/v1/users/logout", protected(users.Logout))
	mux.Handle("POST /api/v1/users/change-password", protected(users.ChangePassword))
	mux.Handle("GET /api/v1/users/current-user", protected(users.CurrentUser))
	mux.Handle("PATCH /api/v1/users/update-account", protected(users.UpdateAccount))
	mux.Handle("PATCH /api/v1/users/avatar", protected(users.UpdateAvatar))
	mux.Handle("PATCH /api/v1/users/cover-image", protected(users.UpdateCoverImage))
	mux.Handle("GET /api/v1/users/watch-history", protected(users.WatchHistory))
	mux.Handle("POST /api/v1/users/watch-history/{videoId}", protected(users.AddToWatchHistory))
	mux.Handle("DELETE /api/v1/users/watch-history/{videoId}", protected(users.RemoveFromWatchHistory))

	mux.HandleFunc("GET /api/v1/videos", videos.List)
	mux.HandleFunc("GET /api/v1/videos/{videoId}", videos.Get)
	mux.Handle("POST /api/v1/videos", protected(videos.Publish))
	mux.Handle("PATCH /api/v1/videos/{videoId}", protected(videos.UpdateThumbnail))
	mux.Handle("DELETE /api/v1/videos/{videoId}", protected(videos.Delete))

	mux.HandleFunc("GET /api/v1/playlists/{playlistId}", playlists.Get)
	mux.Handle("POST /api/v1/playlists", protected(playlists.Create))
	mux.Handle("PATCH /api/v1/playlists/{playlistId}", protected(playlists.Update))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}", protected(playlists.Delete))
	mux.Handle("POST /api/v1/playlists/{playlistId}/videos/{videoId}", protected(playlists.AddVideo))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}/videos/{videoId}", protected(playlists.RemoveVideo))
}
