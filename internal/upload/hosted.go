package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/ticsummit/ticsite/pkg/errors"
)

// HostedUploader forwards files to an external media API.
type HostedUploader struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHostedUploader creates the uploader. A nil client gets a 30s timeout.
func NewHostedUploader(endpoint, apiKey string, client *http.Client) *HostedUploader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HostedUploader{endpoint: strings.TrimRight(endpoint, "/"), apiKey: apiKey, client: client}
}

type hostedResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (u *HostedUploader) Upload(ctx context.Context, obj Object) (Stored, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("key", obj.Key)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(obj.Key)))
	h.Set("Content-Type", obj.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return Stored{}, err
	}
	if _, err := part.Write(obj.Data); err != nil {
		return Stored{}, err
	}
	if err := mw.Close(); err != nil {
		return Stored{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return Stored{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	u.authorize(req)

	resp, err := u.client.Do(req)
	if err != nil {
		return Stored{}, errors.BadGateway.Explain("upload provider unreachable").Wrap(err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return Stored{}, err
	}

	var out hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Stored{}, errors.BadGateway.Explain("upload provider sent an invalid response").Wrap(err)
	}
	if out.Key == "" {
		out.Key = obj.Key
	}
	return Stored{Key: out.Key, URL: out.URL, ContentType: obj.ContentType, Size: obj.Size()}, nil
}

func (u *HostedUploader) Delete(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return errors.Invalid.Explain("invalid upload key")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u.endpoint+"/"+key, nil)
	if err != nil {
		return err
	}
	u.authorize(req)
	resp, err := u.client.Do(req)
	if err != nil {
		return errors.BadGateway.Explain("upload provider unreachable").Wrap(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFound.Explain("upload %s not found", key)
	}
	return checkStatus(resp)
}

func (u *HostedUploader) authorize(req *http.Request) {
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.BadGateway.Explain("upload provider answered %d", resp.StatusCode).
		Wrap(fmt.Errorf("%s", strings.TrimSpace(string(msg))))
}
