package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticsummit/ticsite/pkg/errors"
)

// Smallest valid PNG: signature plus IHDR chunk header.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func newValidator() *Validator {
	v := NewValidator(1024, []string{"image/png", "application/pdf"})
	v.now = func() time.Time { return time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC) }
	return v
}

func TestValidate(t *testing.T) {
	v := newValidator()

	obj, err := v.Validate(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.True(t, strings.HasPrefix(obj.Key, "2026/05/"), obj.Key)
	assert.True(t, strings.HasSuffix(obj.Key, ".png"), obj.Key)
	assert.True(t, ValidKey(obj.Key))

	_, err = v.Validate(strings.NewReader("<html><script>alert(1)</script></html>"))
	assert.True(t, errors.Is(err, errors.Invalid))

	_, err = v.Validate(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, errors.Invalid))

	_, err = v.Validate(bytes.NewReader(append(pngBytes, make([]byte, 2048)...)))
	assert.True(t, errors.Is(err, errors.TooLarge))
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("2026/05/a.png"))
	for _, k := range []string{"", "/etc/passwd", "../x", "2026/../../x", `a\b`} {
		assert.False(t, ValidKey(k), k)
	}
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := newValidator().Validate(bytes.NewReader(pngBytes))
	require.NoError(t, err)
	stored, err := u.Upload(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+obj.Key, stored.URL)
	assert.EqualValues(t, len(pngBytes), stored.Size)

	onDisk, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(obj.Key)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, onDisk)

	require.NoError(t, u.Delete(ctx, obj.Key))
	assert.True(t, errors.Is(u.Delete(ctx, obj.Key), errors.NotFound))
	assert.True(t, errors.Is(u.Delete(ctx, "../escape"), errors.Invalid))
}

func TestHostedUploader(t *testing.T) {
	var deleted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodPost:
			f, hdr, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(f)
			assert.Equal(t, pngBytes, data)
			assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
			_ = json.NewEncoder(w).Encode(map[string]string{"key": r.FormValue("key"), "url": "https://cdn.example.com/" + r.FormValue("key")})
		case http.MethodDelete:
			deleted = strings.TrimPrefix(r.URL.Path, "/media/")
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	u := NewHostedUploader(srv.URL+"/media", "secret", srv.Client())
	obj, err := newValidator().Validate(bytes.NewReader(pngBytes))
	require.NoError(t, err)

	stored, err := u.Upload(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, obj.Key, stored.Key)
	assert.Equal(t, "https://cdn.example.com/"+obj.Key, stored.URL)

	require.NoError(t, u.Delete(ctx, obj.Key))
	assert.Equal(t, obj.Key, deleted)

	bad := NewHostedUploader(srv.URL+"/media", "wrong", srv.Client())
	_, err = bad.Upload(ctx, obj)
	assert.Equal(t, http.StatusBadGateway, errors.StatusOf(err))
}
