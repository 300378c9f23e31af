package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/viewtube/backend/internal/models"
)

// MongoUserRepository provides MongoDB-backed persistence for users.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository constructs a user repository over the users collection.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: database.Collection("users")}
}

// Create persists a new user record.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by its identifier.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}
	return user, nil
}

// FindByUsernameOrEmail fetches the first user matching either identifier.
func (r *MongoUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": email},
	}}

	var user models.User
	if err := r.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by username or email: %w", err)
	}
	return user, nil
}

// UpdateDetails replaces the mutable profile fields and returns the new record.
func (r *MongoUserRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (models.User, error) {
	update := bson.M{"$set": bson.M{
		"full_name":  fullName,
		"email":      email,
		"updated_at": time.Now().UTC(),
	}}
	return r.findOneAndUpdate(ctx, id, update)
}

// UpdatePassword stores a new password hash.
func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	update := bson.M{"$set": bson.M{
		"password":   passwordHash,
		"updated_at": time.Now().UTC(),
	}}
	return r.updateOne(ctx, id, update)
}

// SetImage points the given image field (avatar or cover_image) at a new
// asset URL and returns the updated record.
func (r *MongoUserRepository) SetImage(ctx context.Context, id, field, url string) (models.User, error) {
	if field != ImageFieldAvatar && field != ImageFieldCoverImage {
		return models.User{}, fmt.Errorf("unsupported image field %q", field)
	}
	update := bson.M{"$set": bson.M{
		field:        url,
		"updated_at": time.Now().UTC(),
	}}
	return r.findOneAndUpdate(ctx, id, update)
}

// SetRefreshToken overwrites the stored refresh token. Only the token field is
// touched; the rest of the record is not re-validated.
func (r *MongoUserRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"refresh_token": token}})
}

// SwapRefreshToken replaces the stored refresh token only if it still equals
// current. A concurrent rotation or a revoked token leaves the filter
// unmatched, which surfaces as ErrConflict.
func (r *MongoUserRepository) SwapRefreshToken(ctx context.Context, id, current, next string) error {
	filter := bson.M{"_id": id, "refresh_token": current}
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"refresh_token": next}})
	if err != nil {
		return fmt.Errorf("swap refresh token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

// ClearRefreshToken removes the stored refresh token.
func (r *MongoUserRepository) ClearRefreshToken(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{"$unset": bson.M{"refresh_token": ""}})
}

// AddToWatchHistory appends a video reference to the user's watch history.
func (r *MongoUserRepository) AddToWatchHistory(ctx context.Context, id, videoID string) (models.User, error) {
	update := bson.M{
		"$push": bson.M{"watch_history": videoID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

// RemoveFromWatchHistory removes a video reference from the watch history.
func (r *MongoUserRepository) RemoveFromWatchHistory(ctx context.Context, id, videoID string) (models.User, error) {
	update := bson.M{
		"$pull": bson.M{"watch_history": videoID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// MongoVideoRepository provides MongoDB-backed persistence for videos.
type MongoVideoRepository struct {
	col *mongo.Collection
}

// NewMongoVideoRepository constructs a video repository over the videos collection.
func NewMongoVideoRepository(database *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{col: database.Collection("videos")}
}

// Create stores a new video record.
func (r *MongoVideoRepository) Create(ctx context.Context, video models.Video) error {
	if _, err := r.col.InsertOne(ctx, video); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// FindByID fetches a video by its identifier.
func (r *MongoVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	var video models.Video
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&video); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video by id: %w", err)
	}
	return video, nil
}

// List returns all published videos, newest first.
func (r *MongoVideoRepository) List(ctx context.Context) ([]models.Video, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer cur.Close(ctx)

	var videos []models.Video
	if err := cur.All(ctx, &videos); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}
	return videos, nil
}

// SetThumbnail replaces the thumbnail URL and returns the updated record.
func (r *MongoVideoRepository) SetThumbnail(ctx context.Context, id, url string) (models.Video, error) {
	update := bson.M{"$set": bson.M{
		"thumbnail":  url,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var video models.Video
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&video); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("update video thumbnail: %w", err)
	}
	return video, nil
}

// Delete removes a video record.
func (r *MongoVideoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoPlaylistRepository provides MongoDB-backed persistence for playlists.
type MongoPlaylistRepository struct {
	col *mongo.Collection
}

// NewMongoPlaylistRepository constructs a playlist repository over the
// playlists collection.
func NewMongoPlaylistRepository(database *mongo.Database) *MongoPlaylistRepository {
	return &MongoPlaylistRepository{col: database.Collection("playlists")}
}

// Create stores a new playlist record.
func (r *MongoPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	if _, err := r.col.InsertOne(ctx, playlist); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert playlist: %w", err)
	}
	return nil
}

// FindByID fetches a playlist by its identifier.
func (r *MongoPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	var playlist models.Playlist
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&playlist); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("select playlist by id: %w", err)
	}
	return playlist, nil
}

// UpdateDetails replaces name and description and returns the new record.
func (r *MongoPlaylistRepository) UpdateDetails(ctx context.Context, id, name, description string) (models.Playlist, error) {
	update := bson.M{"$set": bson.M{
		"name":        name,
		"description": description,
		"updated_at":  time.Now().UTC(),
	}}
	return r.findOneAndUpdate(ctx, id, update)
}

// AddVideo appends a video reference to the playlist. Duplicates are allowed.
func (r *MongoPlaylistRepository) AddVideo(ctx context.Context, id, videoID string) (models.Playlist, error) {
	update := bson.M{
		"$push": bson.M{"videos": videoID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

// RemoveVideo removes a video reference from the playlist.
func (r *MongoPlaylistRepository) RemoveVideo(ctx context.Context, id, videoID string) (models.Playlist, error) {
	update := bson.M{
		"$pull": bson.M{"videos": videoID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return r.findOneAndUpdate(ctx, id, update)
}

// Delete removes a playlist record.
func (r *MongoPlaylistRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPlaylistRepository) findOneAndUpdate(ctx context.Context, id string, update bson.M) (models.Playlist, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var playlist models.Playlist
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&playlist); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Playlist{}, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return models.Playlist{}, ErrConflict
		}
		return models.Playlist{}, fmt.Errorf("update playlist: %w", err)
	}
	return playlist, nil
}

var _ UserRepository = (*MongoUserRepository)(nil)
var _ VideoRepository = (*MongoVideoRepository)(nil)
var _ PlaylistRepository = (*MongoPlaylistRepository)(nil)
