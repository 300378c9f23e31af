package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

var (
	// ErrTokenInvalid indicates a credential with a bad signature, a bad
	// shape, an elapsed expiry, or a subject that no longer exists.
	ErrTokenInvalid = errors.New("token invalid or expired")
	// ErrTokenReused indicates a refresh token that no longer matches the
	// stored value. Any mismatch is treated as compromise, not staleness.
	ErrTokenReused = errors.New("refresh token revoked or already rotated")
)

// AccessClaims is the signed claim set carried by access tokens. The user id
// travels in the registered Subject claim.
type AccessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the user id.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenStore is the narrow persistence surface the token service needs. The
// refresh-token writes deliberately touch nothing but that one field.
type TokenStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// TokenService issues, verifies, rotates, and revokes the signed token pair.
// Each user holds at most one live refresh token; issuing overwrites, never
// appends.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	users TokenStore

	// NowFunc lets tests control the clock.
	NowFunc func() time.Time
}

// NewTokenService constructs a TokenService with the provided signing secrets
// and lifetimes.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, users TokenStore) *TokenService {
	if users == nil {
		panic("auth: token store must not be nil")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
	}
}

// Issue signs a new access/refresh pair derived from the user's current state
// and persists the refresh token onto the user record.
func (s *TokenService) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	now := s.now()

	accessExpiry := now.Add(s.accessTTL)
	access, err := s.signAccess(user, now, accessExpiry)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refresh, err := s.signRefresh(user.ID, now, refreshExpiry)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return models.SessionTokens{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (s *TokenService) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.accessSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return AccessClaims{}, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return AccessClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// Rotate exchanges a presented refresh token for a fresh pair. The presented
// token must decode, reference a live user, and exactly match the stored
// value; the stored token is then swapped with compare-and-swap semantics so
// concurrent rotations cannot both win.
func (s *TokenService) Rotate(ctx context.Context, presented string) (models.SessionTokens, error) {
	userID, err := s.decodeRefresh(presented)
	if err != nil {
		return models.SessionTokens{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, ErrTokenInvalid
		}
		return models.SessionTokens{}, fmt.Errorf("load user for rotation: %w", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != presented {
		return models.SessionTokens{}, ErrTokenReused
	}

	now := s.now()

	accessExpiry := now.Add(s.accessTTL)
	access, err := s.signAccess(user, now, accessExpiry)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refresh, err := s.signRefresh(user.ID, now, refreshExpiry)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.users.SwapRefreshToken(ctx, user.ID, presented, refresh); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.SessionTokens{}, ErrTokenReused
		}
		return models.SessionTokens{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// Revoke clears the stored refresh token. Any later rotation attempt with the
// old token fails.
func (s *TokenService) Revoke(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) signAccess(user models.User, now, expiry time.Time) (string, error) {
	claims := AccessClaims{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *TokenService) signRefresh(userID string, now, expiry time.Time) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

func (s *TokenService) decodeRefresh(token string) (string, error) {
	var claims RefreshClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.refreshSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

func (s *TokenService) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
