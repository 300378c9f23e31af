package assets

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	// ErrUnavailable indicates the asset backend did not answer within the
	// configured deadline or refused the connection.
	ErrUnavailable = errors.New("asset store unavailable")
)

// DeleteResult reports the outcome of a remote asset deletion.
type DeleteResult string

const (
	// DeleteOK means the asset existed and was removed.
	DeleteOK DeleteResult = "ok"
	// DeleteNotFound means the asset was already gone. Callers replacing an
	// asset treat this as success.
	DeleteNotFound DeleteResult = "not-found"
	// DeleteError means the backend failed in some other way; the
	// surrounding update must abort.
	DeleteError DeleteResult = "error"
)

// VideoUpload is the result of storing a video asset.
type VideoUpload struct {
	URL string
	// Duration is in whole seconds, rounded up from the probed value.
	Duration int
}

// Store abstracts the external media service holding uploaded assets.
type Store interface {
	UploadImage(ctx context.Context, localPath string) (string, error)
	UploadVideo(ctx context.Context, localPath string) (VideoUpload, error)
	Delete(ctx context.Context, assetURL string) (DeleteResult, error)
}

// PublicID derives an asset's public identifier from its URL: the final path
// segment with the file-extension suffix stripped.
func PublicID(assetURL string) string {
	segment := path.Base(strings.TrimSuffix(assetURL, "/"))
	if segment == "." || segment == "/" {
		return ""
	}
	return strings.TrimSuffix(segment, path.Ext(segment))
}
