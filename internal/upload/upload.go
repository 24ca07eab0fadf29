// Package upload validates and stores media files.
package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ticsummit/ticsite/internal/config"
	"github.com/ticsummit/ticsite/pkg/errors"
)

// Object is a file accepted for upload after validation.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Size returns the length of the object in bytes.
func (o Object) Size() int64 { return int64(len(o.Data)) }

// Stored describes an uploaded file.
type Stored struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Uploader persists validated objects.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (Stored, error)
	Delete(ctx context.Context, key string) error
}

// Validator checks size and sniffed content type.
type Validator struct {
	maxBytes int64
	allowed  []string
	now      func() time.Time
}

func NewValidator(maxBytes int64, allowed []string) *Validator {
	return &Validator{maxBytes: maxBytes, allowed: allowed, now: time.Now}
}

// Validate reads r and returns an object keyed yyyy/mm/<uuid><ext>. The
// client supplied content type is ignored.
func (v *Validator) Validate(r io.Reader) (Object, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return Object{}, errors.Invalid.Explain("failed to read upload").Wrap(err)
	}
	if len(data) == 0 {
		return Object{}, errors.Invalid.Explain("file is empty").WithField("file", "required", "is empty")
	}
	if int64(len(data)) > v.maxBytes {
		return Object{}, errors.TooLarge.Explain("file exceeds %d bytes", v.maxBytes)
	}

	detected := mimetype.Detect(data)
	if !v.allowedType(detected) {
		return Object{}, errors.Invalid.Explain("file type %s is not allowed", detected.String()).
			WithField("file", "type", "unsupported file type")
	}

	now := v.now().UTC()
	key := fmt.Sprintf("%04d/%02d/%s%s", now.Year(), now.Month(), uuid.NewString(), detected.Extension())
	ct := strings.SplitN(detected.String(), ";", 2)[0]
	return Object{Key: key, ContentType: ct, Data: data}, nil
}

func (v *Validator) allowedType(m *mimetype.MIME) bool {
	for _, a := range v.allowed {
		if m.Is(a) {
			return true
		}
	}
	return false
}

// ValidKey reports whether key looks like one produced by Validate.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "..")
}

// New builds the uploader for the configured provider.
func New(cfg config.UploadConfig) (Uploader, error) {
	switch cfg.Provider {
	case "local":
		return NewLocalUploader(cfg.LocalDir, cfg.PublicBase)
	case "hosted":
		return NewHostedUploader(cfg.Endpoint, cfg.APIKey, nil), nil
	default:
		return nil, fmt.Errorf("unsupported upload provider %q", cfg.Provider)
	}
}
