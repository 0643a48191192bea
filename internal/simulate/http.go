package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/duel/pkg/logger"
)

const pageSize = 500

type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// checkHealth verifies the service is serving.
func (c *httpClient) checkHealth(ctx context.Context, baseURL string) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, baseURL+"/healthz", &health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return fmt.Errorf("service status %q", health.Status)
	}
	return nil
}

// leaderboard pages through the whole ranking.
func (c *httpClient) leaderboard(ctx context.Context, baseURL string) ([]Entry, error) {
	var all []Entry
	for offset := 0; ; offset += pageSize {
		var page []Entry
		url := fmt.Sprintf("%s/leaderboard?limit=%d&offset=%d", baseURL, pageSize, offset)
		if err := c.getJSON(ctx, url, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
