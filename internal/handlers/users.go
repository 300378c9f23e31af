package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// RefreshTokenCookie is the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// UserHandler implements account and authentication endpoints.
type UserHandler struct {
	Users   UserStore
	Tokens  TokenService
	Assets  AssetStore
	Videos  VideoReader
	Limiter RateLimiter

	CookieSecure bool
	UploadDir    string
	NowFunc      func() time.Time
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register. The body may be JSON or
// multipart form data; only the latter can carry avatar/coverImage files.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondError(ctx, w, fmt.Errorf("%w: register", errRateLimited))
		return
	}

	var req registerRequest
	var avatarPath, coverPath string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			respondError(ctx, w, badRequest("invalid multipart body"))
			return
		}
		req = registerRequest{
			FullName: r.FormValue("fullName"),
			Email:    r.FormValue("email"),
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}

		var err error
		if avatarPath, _, err = saveUploadedFile(r, "avatar", h.UploadDir); err != nil {
			respondError(ctx, w, err)
			return
		}
		defer removeIfPresent(avatarPath)

		if coverPath, _, err = saveUploadedFile(r, "coverImage", h.UploadDir); err != nil {
			respondError(ctx, w, err)
			return
		}
		defer removeIfPresent(coverPath)
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(ctx, w, badRequest("invalid request body"))
			return
		}
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))

	if req.FullName == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		respondError(ctx, w, badRequest("fullName, email, username, and password are all required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, badRequest("invalid email address"))
		return
	}
	if len(req.Password) < 8 {
		respondError(ctx, w, badRequest("password must have at least 8 characters"))
		return
	}

	if _, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email); err == nil {
		respondError(ctx, w, fmt.Errorf("%w: username or email taken", repositories.ErrConflict))
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		respondError(ctx, w, fmt.Errorf("check existing accounts: %w", err))
		return
	}

	var avatarURL, coverURL string
	if avatarPath != "" {
		url, err := h.Assets.UploadImage(ctx, avatarPath)
		if err != nil {
			respondError(ctx, w, fmt.Errorf("upload avatar: %w", err))
			return
		}
		avatarURL = url
	}
	if coverPath != "" {
		url, err := h.Assets.UploadImage(ctx, coverPath)
		if err != nil {
			respondError(ctx, w, fmt.Errorf("upload cover image: %w", err))
			return
		}
		coverURL = url
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("hash password: %w", err))
		return
	}

	now := h.now()
	user := models.User{
		ID:         uuid.NewString(),
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		Password:   string(hashed),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		respondError(ctx, w, fmt.Errorf("create user: %w", err))
		return
	}

	logger.Info("user registered", "userId", user.ID, "username", user.Username)
	respondData(ctx, w, http.StatusCreated, user.Sanitized(), "user registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, fmt.Errorf("%w: login", errRateLimited))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, badRequest("invalid request body"))
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" && req.Email == "" {
		respondError(ctx, w, badRequest("username or email is required"))
		return
	}

	user, err := h.Users.FindByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, fmt.Errorf("%w: user does not exist", repositories.ErrNotFound))
			return
		}
		respondError(ctx, w, fmt.Errorf("login lookup: %w", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, errUnauthorized)
		return
	}

	tokens, err := h.Tokens.Issue(ctx, user)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("issue tokens: %w", err))
		return
	}

	h.setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, loginResponse{
		User:         user.Sanitized(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "user logged in successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Tokens.Revoke(ctx, user.ID); err != nil {
		respondError(ctx, w, fmt.Errorf("revoke session: %w", err))
		return
	}

	h.clearAuthCookies(w)
	respondData(ctx, w, http.StatusOK, struct{}{}, "user logged out")
}

// Refresh handles POST /api/v1/users/refresh-token. The presented token comes
// from the refreshToken cookie or the request body.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "refresh") {
		respondError(ctx, w, fmt.Errorf("%w: refresh", errRateLimited))
		return
	}

	presented := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" && r.Body != nil {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}

	if presented == "" {
		respondError(ctx, w, fmt.Errorf("%w: no refresh token presented", errUnauthorized))
		return
	}

	tokens, err := h.Tokens.Rotate(ctx, presented)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	h.setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, tokenPairResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "access token refreshed")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, badRequest("invalid request body"))
		return
	}

	// The context identity is credential-stripped; re-fetch for the hash.
	user, err := h.Users.FindByID(ctx, identity.ID)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("load user: %w", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		respondError(ctx, w, badRequest("invalid old password"))
		return
	}
	if len(req.NewPassword) < 8 {
		respondError(ctx, w, badRequest("password must have at least 8 characters"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("hash password: %w", err))
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		respondError(ctx, w, fmt.Errorf("update password: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, user, "user fetched successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, badRequest("invalid request body"))
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FullName == "" || req.Email == "" {
		respondError(ctx, w, badRequest("fullName and email are both required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, badRequest("invalid email address"))
		return
	}

	user, err := h.Users.UpdateDetails(ctx, identity.ID, req.FullName, req.Email)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("update account details: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, user.Sanitized(), "account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", repositories.ImageFieldAvatar, func(u models.User) string {
		return u.Avatar
	})
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", repositories.ImageFieldCoverImage, func(u models.User) string {
		return u.CoverImage
	})
}

// updateImage replaces a user image asset: upload the replacement first, then
// delete the previous remote asset. An already-gone asset is fine; any other
// deletion failure aborts the record update to avoid dangling-vs-duplicate
// asset drift.
func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, formField, dbField string, current func(models.User) string) {
	ctx := r.Context()

	identity, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(ctx, w, badRequest("invalid multipart body"))
		return
	}

	localPath, present, err := saveUploadedFile(r, formField, h.UploadDir)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if !present {
		respondError(ctx, w, badRequest(formField+" file is missing"))
		return
	}
	defer removeIfPresent(localPath)

	uploadCtx, span := logging.StartSpan(ctx, "assets.upload_image")
	url, err := h.Assets.UploadImage(uploadCtx, localPath)
	span.End()
	if err != nil {
		respondError(ctx, w, fmt.Errorf("upload %s: %w", formField, err))
		return
	}

	if previous := current(identity); previous != "" {
		if err := deleteRemoteAsset(ctx, h.Assets, previous); err != nil {
			respondError(ctx, w, err)
			return
		}
	}

	user, err := h.Users.SetImage(ctx, identity.ID, dbField, url)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("update %s: %w", formField, err))
		return
	}

	respondData(ctx, w, http.StatusOK, user.Sanitized(), formField+" updated successfully")
}

// WatchHistory handles GET /api/v1/users/watch-history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Users.FindByID(ctx, identity.ID)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("load watch history: %w", err))
		return
	}

	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}
	respondData(ctx, w, http.StatusOK, history, "watch history fetched successfully")
}

// AddToWatchHistory handles POST /api/v1/users/watch-history/{videoId}.
func (h UserHandler) AddToWatchHistory(w http.ResponseWriter, r *http.Request) {
	h.mutateWatchHistory(w, r, h.Users.AddToWatchHistory, "video added to watch history")
}

// RemoveFromWatchHistory handles DELETE /api/v1/users/watch-history/{videoId}.
func (h UserHandler) RemoveFromWatchHistory(w http.ResponseWriter, r *http.Request) {
	h.mutateWatchHistory(w, r, h.Users.RemoveFromWatchHistory, "video removed from watch history")
}

func (h UserHandler) mutateWatchHistory(w http.ResponseWriter, r *http.Request, mutate func(ctx context.Context, id, videoID string) (models.User, error), message string) {
	ctx := r.Context()

	identity, err := identityFrom(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	videoID := r.PathValue("videoId")
	if videoID == "" {
		respondError(ctx, w, badRequest("videoId is required"))
		return
	}

	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		respondError(ctx, w, fmt.Errorf("find video: %w", err))
		return
	}

	user, err := mutate(ctx, identity.ID, videoID)
	if err != nil {
		respondError(ctx, w, fmt.Errorf("update watch history: %w", err))
		return
	}

	respondData(ctx, w, http.StatusOK, user.Sanitized(), message)
}

func (h UserHandler) setAuthCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h UserHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// identityFrom returns the authenticated user attached by the guard.
func identityFrom(ctx context.Context) (models.User, error) {
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		return models.User{}, errUnauthorized
	}
	return user, nil
}
