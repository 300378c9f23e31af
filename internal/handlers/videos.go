package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// VideoHandler implements video publishing and management endpoints.
type VideoHandler struct {
	Videos VideoStore
	Assets AssetStore

	UploadDir string
	NowFunc   func() time.Time
}

// List handles GET /api/v1/videos. An empty catalog reports not found rather
// than an empty page.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := h.Videos.List(ctx)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("list videos: %w", err))
		return
	}
	if len(videos) == 0 {
		respondError(ctx, w, fmt.Errorf("%w: no videos published yet", repositories.ErrNotFound))
		return
	}

	respondData(ctx, w, http.StatusOK, videos, "videos fetched successfully")
}

// Get handles GET /api/v1/videos/{videoId}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, fmt.Errorf("find video: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, video, "video fetched successfully")
}

// Publish handles POST /api/v1/videos. The multipart body must carry a
// videoFile and a thumbnail alongside title and description fields.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	owner, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, badRequest("invalid multipart body"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		respondError(ctx, w, badRequest("title and description are both required"))
		return
	}

	videoPath, present, err := saveUploadedFile(r, "videoFile", h.UploadDir)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if !present {
		respondError(ctx, w, badRequest("videoFile is missing"))
		return
	}
	defer removeIfPresent(videoPath)

	thumbPath, present, err := saveUploadedFile(r, "thumbnail", h.UploadDir)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if !present {
		respondError(ctx, w, badRequest("thumbnail is missing"))
		return
	}
	defer removeIfPresent(thumbPath)

	uploadCtx, span := logging.StartSpan(ctx, "assets.upload_video")
	upload, err := h.Assets.UploadVideo(uploadCtx, videoPath)
	span.End()
	if err != nil {
		respondError(ctx, w, fmt.Errorf("upload video file: %w", err))
		return
	}

	thumbURL, err := h.Assets.UploadImage(ctx, thumbPath)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("upload thumbnail: %w", err))
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		VideoFile:   upload.URL,
		Thumbnail:   thumbURL,
		Title:       title,
		Description: description,
		Duration:    upload.Duration,
		Owner:       owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		respondError(ctx, w, fmt.Errorf("create video: %w", err))
		return
	}

	logger.Info("video published", "videoId", video.ID, "owner", owner.ID, "duration", video.Duration)
	respondData(ctx, w, http.StatusCreated, video, "video published successfully")
}

// UpdateThumbnail handles PATCH /api/v1/videos/{videoId}. Only the owner may
// replace the thumbnail.
func (h VideoHandler) UpdateThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, fmt.Errorf("find video: %w", err))
		return
	}
	if err := auth.RequireOwner(video, actor.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, badRequest("invalid multipart body"))
		return
	}

	localPath, present, err := saveUploadedFile(r, "thumbnail", h.UploadDir)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if !present {
		respondError(ctx, w, badRequest("thumbnail is missing"))
		return
	}
	defer removeIfPresent(localPath)

	url, err := h.Assets.UploadImage(ctx, localPath)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("upload thumbnail: %w", err))
		return
	}

	if video.Thumbnail != "" {
		if err := deleteRemoteAsset(ctx, h.Assets, video.Thumbnail); err != nil {
			respondError(ctx, w, err)
			return
		}
	}

	updated, err := h.Videos.SetThumbnail(ctx, video.ID, url)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("update thumbnail: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "thumbnail updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}. The remote video file and
// thumbnail are removed before the record; a remote failure leaves the record
// in place so the delete can be retried.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	actor, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		respondError(ctx, w, fmt.Errorf("find video: %w", err))
		return
	}
	if err := auth.RequireOwner(video, actor.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	for _, assetURL := range []string{video.VideoFile, video.Thumbnail} {
		if assetURL == "" {
			continue
		}
		if err := deleteRemoteAsset(ctx, h.Assets, assetURL); err != nil {
			respondError(ctx, w, err)
			return
		}
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondError(ctx, w, fmt.Errorf("delete video: %w", err))
		return
	}

	logger.Info("video deleted", "videoId", video.ID, "owner", actor.ID)
	respondData(ctx, w, http.StatusOK, struct{}{}, "video deleted successfully")
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
