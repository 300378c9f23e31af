package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/assets"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing; larger
// bodies spill to disk.
const maxUploadMemory = 32 << 20

// saveUploadedFile spools one multipart file field to the upload directory
// and returns its local path. The second return reports whether the field was
// present at all; callers are responsible for removing the file once the
// asset store call completes.
func saveUploadedFile(r *http.Request, field, dir string) (string, bool, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s upload: %w", field, err)
	}
	defer file.Close()

	if dir == "" {
		dir = os.TempDir()
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	localPath := filepath.Join(dir, uuid.NewString()+ext)

	out, err := os.Create(localPath)
	if err != nil {
		return "", true, fmt.Errorf("spool %s upload: %w", field, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(localPath)
		return "", true, fmt.Errorf("spool %s upload: %w", field, err)
	}

	return localPath, true, nil
}

func removeIfPresent(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// deleteRemoteAsset removes one remote asset, tolerating a not-found result.
// Store outages surface as-is so the boundary can report 503.
func deleteRemoteAsset(ctx context.Context, store AssetStore, assetURL string) error {
	result, err := store.Delete(ctx, assetURL)
	if err != nil {
		if errors.Is(err, assets.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", errAssetDeletion, err)
	}
	if result != assets.DeleteOK && result != assets.DeleteNotFound {
		return fmt.Errorf("%w: result %q for %s", errAssetDeletion, result, assets.PublicID(assetURL))
	}
	return nil
}
