package syncer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const remoteRequestTimeout = 20 * time.Second

// HTTPRemote talks to the sync endpoint over HTTP JSON:
// PUT /v1/state/<installationID> to upsert, GET to fetch.
type HTTPRemote struct {
	client  *http.Client
	baseURL string
}

// NewHTTPRemote creates a remote client for the given base URL.
func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		client:  &http.Client{Timeout: remoteRequestTimeout},
		baseURL: baseURL,
	}
}

// Upsert stores the blob under the installation id.
func (r *HTTPRemote) Upsert(ctx context.Context, installationID string, blob []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.stateURL(installationID), bytes.NewReader(blob))
	if err != nil {
		return errors.Wrap(err, "build upsert request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "upsert request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("sync endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Fetch returns the blob stored under the installation id, ErrNotFound
// when the endpoint has no state for it.
func (r *HTTPRemote) Fetch(ctx context.Context, installationID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.stateURL(installationID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build fetch request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("sync endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *HTTPRemote) stateURL(installationID string) string {
	return r.baseURL + "/v1/state/" + url.PathEscape(installationID)
}
