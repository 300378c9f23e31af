package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/models"
)

// PlaylistHandler implements playlist management endpoints.
type PlaylistHandler struct {
	Playlists PlaylistStore
	Videos    VideoReader

	NowFunc func() time.Time
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/playlists. Playlist names are stored lowercased
// and must be unique.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	owner, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, badRequest("invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(strings.ToLower(req.Name))
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Description == "" {
		respondError(ctx, w, badRequest("name and description are both required"))
		return
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Videos:      []string{},
		Owner:       owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondError(ctx, w, fmt.Errorf("create playlist: %w", err))
		return
	}

	logger.Info("playlist created", "playlistId", playlist.ID, "owner", owner.ID)
	respondData(ctx, w, http.StatusCreated, playlist, "playlist created successfully")
}

// Get handles GET /api/v1/playlists/{playlistId}. Reads are public.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.Playlists.FindByID(ctx, r.PathValue("playlistId"))
	if err != nil {
		respondError(ctx, w, fmt.Errorf("find playlist: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, playlist, "playlist fetched successfully")
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.ownedPlaylist(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, badRequest("invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(strings.ToLower(req.Name))
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Description == "" {
		respondError(ctx, w, badRequest("name and description are both required"))
		return
	}

	updated, err := h.Playlists.UpdateDetails(ctx, playlist.ID, req.Name, req.Description)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("update playlist: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "playlist updated successfully")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.ownedPlaylist(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		respondError(ctx, w, fmt.Errorf("delete playlist: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "playlist deleted successfully")
}

// AddVideo handles POST /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.ownedPlaylist(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	videoID := r.PathValue("videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		respondError(ctx, w, fmt.Errorf("find video: %w", err))
		return
	}

	updated, err := h.Playlists.AddVideo(ctx, playlist.ID, videoID)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("add video to playlist: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "video added to playlist")
}

// RemoveVideo handles DELETE /api/v1/playlists/{playlistId}/videos/{videoId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, err := h.ownedPlaylist(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	videoID := r.PathValue("videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		respondError(ctx, w, fmt.Errorf("find video: %w", err))
		return
	}

	updated, err := h.Playlists.RemoveVideo(ctx, playlist.ID, videoID)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("remove video from playlist: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "video removed from playlist")
}

// ownedPlaylist loads the addressed playlist and checks the caller owns it.
func (h PlaylistHandler) ownedPlaylist(r *http.Request) (models.Playlist, error) {
	ctx := r.Context()

	actor, err := identityFrom(ctx)
	if err != nil {
		return models.Playlist{}, err
	}

	playlist, err := h.Playlists.FindByID(ctx, r.PathValue("playlistId"))
	if err != nil {
		return models.Playlist{}, fmt.Errorf("find playlist: %w", err)
	}
	if err := auth.RequireOwner(playlist, actor.ID); err != nil {
		return models.Playlist{}, err
	}
	return playlist, nil
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
