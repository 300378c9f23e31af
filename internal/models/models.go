package models

import "time"

// User represents an account within the ViewTube platform. The password hash
// and the active refresh token never leave the service; both are suppressed
// from JSON output.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email" json:"email"`
	FullName     string    `bson:"full_name" json:"fullName"`
	Avatar       string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	CoverImage   string    `bson:"cover_image,omitempty" json:"coverImage,omitempty"`
	WatchHistory []string  `bson:"watch_history,omitempty" json:"watchHistory,omitempty"`
	Password     string    `bson:"password" json:"-"`
	RefreshToken string    `bson:"refresh_token,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// Sanitized returns a copy with credential material cleared, safe to embed in
// a response envelope.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshToken = ""
	return u
}

// Video is a published video backed by remote assets. The owner reference is
// immutable after creation.
type Video struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	VideoFile   string    `bson:"video_file" json:"videoFile"`
	Thumbnail   string    `bson:"thumbnail" json:"thumbnail"`
	Duration    int       `bson:"duration" json:"duration"`
	Owner       string    `bson:"owner" json:"owner"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// OwnerID implements auth.Owned.
func (v Video) OwnerID() string { return v.Owner }

// Playlist groups video references. Membership order is preserved and
// duplicates are not rejected.
type Playlist struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Videos      []string  `bson:"videos,omitempty" json:"videos,omitempty"`
	Owner       string    `bson:"owner" json:"owner"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// OwnerID implements auth.Owned.
func (p Playlist) OwnerID() string { return p.Owner }

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
