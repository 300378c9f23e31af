package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

type fakeTokenStore struct {
	users   map[string]models.User
	swapErr error
}

func newFakeTokenStore(users ...models.User) *fakeTokenStore {
	store := &fakeTokenStore{users: make(map[string]models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (s *fakeTokenStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeTokenStore) SetRefreshToken(_ context.Context, id, token string) error {
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = token
	s.users[id] = user
	return nil
}

func (s *fakeTokenStore) SwapRefreshToken(_ context.Context, id, current, next string) error {
	if s.swapErr != nil {
		return s.swapErr
	}
	user, ok := s.users[id]
	if !ok || user.RefreshToken != current {
		return repositories.ErrConflict
	}
	user.RefreshToken = next
	s.users[id] = user
	return nil
}

func (s *fakeTokenStore) ClearRefreshToken(_ context.Context, id string) error {
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = ""
	s.users[id] = user
	return nil
}

func testUser() models.User {
	return models.User{
		ID:       "user-1",
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
	}
}

func newTestService(store TokenStore, now *time.Time) *TokenService {
	svc := NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 240*time.Hour, store)
	svc.NowFunc = func() time.Time { return *now }
	return svc
}

func TestIssueAndVerifyAccess(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	tokens, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected both tokens to be populated")
	}
	if got := store.users["user-1"].RefreshToken; got != tokens.RefreshToken {
		t.Errorf("stored refresh token = %q, want %q", got, tokens.RefreshToken)
	}
	if want := now.Add(15 * time.Minute); !tokens.AccessExpiresAt.Equal(want) {
		t.Errorf("access expiry = %v, want %v", tokens.AccessExpiresAt, want)
	}

	claims, err := svc.VerifyAccess(tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess returned error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("claims subject = %q, want user-1", claims.Subject)
	}
	if claims.Email != "alice@example.com" || claims.Username != "alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestVerifyAccessExpired(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	tokens, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	now = now.Add(16 * time.Minute)

	if _, err := svc.VerifyAccess(tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expired token error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyAccessGarbage(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.VerifyAccess(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("VerifyAccess(%q) error = %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestVerifyAccessWrongSecret(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	other := NewTokenService("different-secret", "refresh-secret", 15*time.Minute, 240*time.Hour, store)
	other.NowFunc = func() time.Time { return now }

	tokens, err := other.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := svc.VerifyAccess(tokens.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("cross-secret token error = %v, want ErrTokenInvalid", err)
	}
}

func TestRotateReplacesToken(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	first, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	now = now.Add(time.Minute)

	second, err := svc.Rotate(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("rotation returned the same refresh token")
	}
	if got := store.users["user-1"].RefreshToken; got != second.RefreshToken {
		t.Errorf("stored refresh token = %q, want the rotated one", got)
	}

	// The superseded token must be dead.
	if _, err := svc.Rotate(context.Background(), first.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Errorf("replayed token error = %v, want ErrTokenReused", err)
	}

	// The live token still rotates.
	now = now.Add(time.Minute)
	if _, err := svc.Rotate(context.Background(), second.RefreshToken); err != nil {
		t.Errorf("rotating the live token failed: %v", err)
	}
}

func TestRotateAfterRevoke(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	tokens, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if err := svc.Revoke(context.Background(), "user-1"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	if _, err := svc.Rotate(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Errorf("post-revoke rotation error = %v, want ErrTokenReused", err)
	}
}

func TestRotateUnknownSubject(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	// Sign a refresh token for a subject that does not exist.
	refresh, err := svc.signRefresh("user-gone", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("signRefresh returned error: %v", err)
	}

	if _, err := svc.Rotate(context.Background(), refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("unknown subject rotation error = %v, want ErrTokenInvalid", err)
	}
}

func TestRotateExpiredRefreshToken(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	tokens, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	now = now.Add(241 * time.Hour)

	if _, err := svc.Rotate(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expired refresh rotation error = %v, want ErrTokenInvalid", err)
	}
}

func TestRotateSwapConflict(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	tokens, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// A concurrent rotation won the swap between the read and the write.
	store.swapErr = repositories.ErrConflict

	if _, err := svc.Rotate(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Errorf("lost-swap rotation error = %v, want ErrTokenReused", err)
	}
}

func TestIssueOverwritesPriorSession(t *testing.T) {
	store := newFakeTokenStore(testUser())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, &now)

	first, err := svc.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := svc.Issue(context.Background(), testUser()); err != nil {
		t.Fatalf("second Issue returned error: %v", err)
	}

	if _, err := svc.Rotate(context.Background(), first.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Errorf("first session rotation error = %v, want ErrTokenReused", err)
	}
}
