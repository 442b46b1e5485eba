package profiles

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// maxAvatarBytes bounds uploads; anything larger is rejected before sniffing.
const maxAvatarBytes = 5 << 20

// allowedAvatarTypes maps accepted content types to the stored extension.
var allowedAvatarTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// AvatarStore persists avatar images on a filesystem. The filesystem is
// abstracted so tests run against an in-memory one.
type AvatarStore struct {
	fs afero.Fs
}

// NewAvatarStore creates an avatar store rooted at dir on the given
// filesystem.
func NewAvatarStore(fs afero.Fs, dir string) (*AvatarStore, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create avatar directory: %w", err)
	}
	return &AvatarStore{fs: afero.NewBasePathFs(fs, dir)}, nil
}

// Fs exposes the underlying filesystem for serving stored avatars.
func (a *AvatarStore) Fs() afero.Fs {
	return a.fs
}

// save writes the avatar under a per-user name and returns that name.
// Content is sniffed, not trusted from the upload's file extension.
func (a *AvatarStore) save(userID string, data []byte) (string, error) {
	kind := mimetype.Detect(data)
	ext, ok := allowedAvatarTypes[kind.String()]
	if !ok {
		return "", fmt.Errorf("unsupported avatar type %s", kind.String())
	}

	// One object per user; a new upload in a different format replaces the
	// old one so stale formats don't linger.
	for _, stale := range allowedAvatarTypes {
		if stale != ext {
			_ = a.fs.Remove(userID + "." + stale)
		}
	}

	name := userID + "." + ext
	if err := afero.WriteFile(a.fs, name, data, 0644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	return name, nil
}

// SaveAvatar stores a new avatar for the user and updates the profile's
// avatar URL. The returned URL carries a cache-busting query parameter so
// clients pick up the replacement immediately.
func (s *Service) SaveAvatar(ctx context.Context, userID string, upload io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(upload, maxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar upload: %w", err)
	}
	if len(data) > maxAvatarBytes {
		return "", fmt.Errorf("avatar exceeds %d bytes", maxAvatarBytes)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty avatar upload")
	}

	name, err := s.avatars.save(userID, data)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/avatars/%s?t=%d", s.baseURL, name, time.Now().Unix())
	if err := s.setAvatarURL(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}

// AvatarName extracts the stored object name from an avatar URL.
func AvatarName(url string) string {
	trimmed := url
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}
