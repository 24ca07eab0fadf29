package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ticsummit/ticsite/pkg/errors"
)

// LocalUploader writes files below a directory served by the router.
type LocalUploader struct {
	dir        string
	publicBase string
}

func NewLocalUploader(dir, publicBase string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Dir returns the root directory of stored files.
func (u *LocalUploader) Dir() string { return u.dir }

// PublicBase returns the URL prefix files are served under.
func (u *LocalUploader) PublicBase() string { return u.publicBase }

func (u *LocalUploader) Upload(_ context.Context, obj Object) (Stored, error) {
	if !ValidKey(obj.Key) {
		return Stored{}, errors.Invalid.Explain("invalid upload key")
	}
	dst := filepath.Join(u.dir, filepath.FromSlash(obj.Key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Stored{}, fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := os.WriteFile(dst, obj.Data, 0o644); err != nil {
		return Stored{}, fmt.Errorf("failed to write upload: %w", err)
	}
	return Stored{Key: obj.Key, URL: u.publicBase + "/" + obj.Key, ContentType: obj.ContentType, Size: obj.Size()}, nil
}

func (u *LocalUploader) Delete(_ context.Context, key string) error {
	if !ValidKey(key) {
		return errors.Invalid.Explain("invalid upload key")
	}
	err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return errors.NotFound.Explain("upload %s not found", key)
	}
	return err
}
