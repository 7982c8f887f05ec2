package supervisor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// WaitReady polls url until the backend answers with a status below 500
// or ctx is done. Connection errors and 5xx responses are retried with
// exponential backoff.
func WaitReady(ctx context.Context, url string) error {
	client := retryablehttp.NewClient()
	client.Logger = nil // connection refused is expected while the backend boots
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.RetryMax = 1 << 20 // bounded by ctx
	client.HTTPClient.Timeout = 2 * time.Second

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("readiness request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("backend not ready: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("backend not ready: status %d", resp.StatusCode)
	}
	return nil
}
