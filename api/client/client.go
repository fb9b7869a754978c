// Package client fetches site assets from a remote origin over HTTP
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bogband/website/assets"
)

const maxAssetSize = 32 << 20

// AssetClient fetches assets from an origin such as a CDN bucket website. It satisfies
// assets.Source so the asset cache can be filled from the origin instead of local disk.
type AssetClient struct {
	baseURL string
	client  *http.Client
}

func NewAssetClient(baseURL string) *AssetClient {
	return &AssetClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Fetch retrieves the asset at the given URL path relative to the origin.
func (ac *AssetClient) Fetch(ctx context.Context, name string) ([]byte, error) {
	u, err := url.JoinPath(ac.baseURL, name)
	if err != nil {
		return nil, fmt.Errorf("failed to build asset url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := ac.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", assets.ErrNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("origin returned status %d for %s", resp.StatusCode, name)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxAssetSize {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", name, maxAssetSize)
	}
	return body, nil
}
