package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/assets"
	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// fakeUserStore is an in-memory UserStore that also satisfies auth.TokenStore,
// so handler tests run against the real token service.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) UpdateDetails(_ context.Context, id, fullName, email string) (models.User, error) {
	return s.mutate(id, func(u *models.User) {
		u.FullName = fullName
		u.Email = email
	})
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := s.mutate(id, func(u *models.User) { u.Password = passwordHash })
	return err
}

func (s *fakeUserStore) SetImage(_ context.Context, id, field, url string) (models.User, error) {
	return s.mutate(id, func(u *models.User) {
		switch field {
		case repositories.ImageFieldAvatar:
			u.Avatar = url
		case repositories.ImageFieldCoverImage:
			u.CoverImage = url
		}
	})
}

func (s *fakeUserStore) AddToWatchHistory(_ context.Context, id, videoID string) (models.User, error) {
	return s.mutate(id, func(u *models.User) {
		for _, existing := range u.WatchHistory {
			if existing == videoID {
				return
			}
		}
		u.WatchHistory = append(u.WatchHistory, videoID)
	})
}

func (s *fakeUserStore) RemoveFromWatchHistory(_ context.Context, id, videoID string) (models.User, error) {
	return s.mutate(id, func(u *models.User) {
		kept := u.WatchHistory[:0]
		for _, existing := range u.WatchHistory {
			if existing != videoID {
				kept = append(kept, existing)
			}
		}
		u.WatchHistory = kept
	})
}

func (s *fakeUserStore) SetRefreshToken(_ context.Context, id, token string) error {
	_, err := s.mutate(id, func(u *models.User) { u.RefreshToken = token })
	return err
}

func (s *fakeUserStore) SwapRefreshToken(_ context.Context, id, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.RefreshToken != current {
		return repositories.ErrConflict
	}
	user.RefreshToken = next
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) ClearRefreshToken(_ context.Context, id string) error {
	_, err := s.mutate(id, func(u *models.User) { u.RefreshToken = "" })
	return err
}

func (s *fakeUserStore) mutate(id string, fn func(*models.User)) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	fn(&user)
	s.users[id] = user
	return user, nil
}

type fakeVideoStore struct {
	mu     sync.Mutex
	videos map[string]models.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]models.Video)}
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *fakeVideoStore) List(_ context.Context) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Video, 0, len(s.videos))
	for _, video := range s.videos {
		out = append(out, video)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeVideoStore) SetThumbnail(_ context.Context, id, url string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.Thumbnail = url
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

type fakePlaylistStore struct {
	mu        sync.Mutex
	playlists map[string]models.Playlist
}

func newFakePlaylistStore() *fakePlaylistStore {
	return &fakePlaylistStore{playlists: make(map[string]models.Playlist)}
}

func (s *fakePlaylistStore) Create(_ context.Context, playlist models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.playlists {
		if existing.Name == playlist.Name {
			return repositories.ErrConflict
		}
	}
	s.playlists[playlist.ID] = playlist
	return nil
}

func (s *fakePlaylistStore) FindByID(_ context.Context, id string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	return playlist, nil
}

func (s *fakePlaylistStore) UpdateDetails(_ context.Context, id, name, description string) (models.Playlist, error) {
	return s.mutate(id, func(p *models.Playlist) {
		p.Name = name
		p.Description = description
	})
}

func (s *fakePlaylistStore) AddVideo(_ context.Context, id, videoID string) (models.Playlist, error) {
	return s.mutate(id, func(p *models.Playlist) {
		p.Videos = append(p.Videos, videoID)
	})
}

func (s *fakePlaylistStore) RemoveVideo(_ context.Context, id, videoID string) (models.Playlist, error) {
	return s.mutate(id, func(p *models.Playlist) {
		kept := p.Videos[:0]
		for _, existing := range p.Videos {
			if existing != videoID {
				kept = append(kept, existing)
			}
		}
		p.Videos = kept
	})
}

func (s *fakePlaylistStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playlists[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.playlists, id)
	return nil
}

func (s *fakePlaylistStore) mutate(id string, fn func(*models.Playlist)) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	fn(&playlist)
	s.playlists[id] = playlist
	return playlist, nil
}

// fakeAssetStore records uploads and deletions without touching a network.
type fakeAssetStore struct {
	mu      sync.Mutex
	counter int

	uploadErr    error
	deleteResult assets.DeleteResult
	deleteErr    error

	uploaded []string
	deleted  []string
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{deleteResult: assets.DeleteOK}
}

func (s *fakeAssetStore) UploadImage(_ context.Context, localPath string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.counter++
	url := fmt.Sprintf("https://cdn.test/images/img-%d.png", s.counter)
	s.uploaded = append(s.uploaded, localPath)
	return url, nil
}

func (s *fakeAssetStore) UploadVideo(_ context.Context, localPath string) (assets.VideoUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return assets.VideoUpload{}, s.uploadErr
	}
	s.counter++
	s.uploaded = append(s.uploaded, localPath)
	return assets.VideoUpload{
		URL:      fmt.Sprintf("https://cdn.test/videos/vid-%d.mp4", s.counter),
		Duration: 125,
	}, nil
}

func (s *fakeAssetStore) Delete(_ context.Context, assetURL string) (assets.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return assets.DeleteError, s.deleteErr
	}
	s.deleted = append(s.deleted, assetURL)
	return s.deleteResult, nil
}

// testEnv wires fakes and the real token service behind the full route table.
type testEnv struct {
	users     *fakeUserStore
	videos    *fakeVideoStore
	playlists *fakePlaylistStore
	assets    *fakeAssetStore
	tokens    *auth.TokenService

	clock time.Time
	mux   *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:     newFakeUserStore(),
		videos:    newFakeVideoStore(),
		playlists: newFakePlaylistStore(),
		assets:    newFakeAssetStore(),
		clock:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env.tokens = auth.NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 240*time.Hour, env.users)
	env.tokens.NowFunc = func() time.Time { return env.clock }

	deps := Dependencies{
		Users:        env.users,
		Videos:       env.videos,
		Playlists:    env.playlists,
		Tokens:       env.tokens,
		Assets:       env.assets,
		Authenticate: middleware.Authenticate(env.tokens, env.users),
		CookieSecure: false,
		UploadDir:    t.TempDir(),
	}

	env.mux = http.NewServeMux()
	RegisterRoutes(env.mux, deps)
	return env
}

// seedUser inserts a user whose password is "correct horse". bcrypt.MinCost
// keeps the suite fast.
func (env *testEnv) seedUser(t *testing.T, id, username string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.User{
		ID:        id,
		Username:  username,
		Email:     username + "@example.com",
		FullName:  "Test " + username,
		Password:  string(hash),
		CreatedAt: env.clock,
		UpdatedAt: env.clock,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// session issues a token pair for the user and returns the access cookie.
func (env *testEnv) session(t *testing.T, user models.User) *http.Cookie {
	t.Helper()

	tokens, err := env.tokens.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return &http.Cookie{Name: middleware.AccessTokenCookie, Value: tokens.AccessToken}
}

func (env *testEnv) do(t *testing.T, method, target string, body io.Reader, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, target string, payload any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return env.do(t, method, target, body, cookies...)
}

func (env *testEnv) doMultipart(t *testing.T, method, target string, fields map[string]string, files map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create file part %s: %v", field, err)
		}
		if _, err := part.Write([]byte("file-bytes")); err != nil {
			t.Fatalf("write file part %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Errors     []string        `json:"errors"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	env := decodeEnvelope(t, rec)
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode envelope data: %v (data %s)", err, string(env.Data))
	}
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
